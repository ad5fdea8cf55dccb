package memory

import (
	"context"
	"sync"
	"time"

	"copyroom/internal/ledger/ports"
	dErrors "copyroom/pkg/domain-errors"
)

// defaultTxTimeout bounds how long a transition waits for the lock.
const defaultTxTimeout = 5 * time.Second

// Ledger is the in-memory ports.Ledger.
type Ledger struct {
	// writer admits one transition at a time and lets waiters time out.
	writer  chan struct{}
	mu      sync.RWMutex
	st      *state
	timeout time.Duration
}

var _ ports.Ledger = (*Ledger)(nil)

type Option func(*Ledger)

func WithTxTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{writer: make(chan struct{}, 1), st: newState(), timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunInTx runs fn under the write lock and undoes its writes on error, panic
// or an expired deadline.
func (l *Ledger) RunInTx(ctx context.Context, fn func(store ports.Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	tx := &txStore{st: l.st}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	err = fn(tx)
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			err = dErrors.Wrap(cerr, dErrors.CodeTimeout, "transaction aborted: deadline passed before commit")
		}
	}
	return err
}

// acquire takes the write lock, giving up when ctx expires first.
func (l *Ledger) acquire(ctx context.Context) error {
	select {
	case l.writer <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: lock wait timed out")
	}
	l.mu.Lock()
	return nil
}

func (l *Ledger) release() {
	l.mu.Unlock()
	<-l.writer
}

// View runs fn under the read lock.
func (l *Ledger) View(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(&txStore{st: l.st, readOnly: true})
}
