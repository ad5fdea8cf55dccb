// Package wallet provides the value-transfer primitive the ledger uses for
// attached payments, withdrawals and bonus payouts.
package wallet

import (
	"context"
	"sync"

	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
)

// ReleaseHook runs after value reaches the receiver, outside the wallet lock.
// A non-nil error reverts the transfer. Tests use it to act as a receiver that
// calls back into the ledger.
type ReleaseHook func(ctx context.Context, to id.Address, amount *id.Amount) error

// Memory is an in-process wallet. Custody holds collected value until it is
// released.
type Memory struct {
	mu       sync.Mutex
	balances map[id.Address]*id.Amount
	custody  *id.Amount
	hook     ReleaseHook
}

var _ ports.Wallet = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[id.Address]*id.Amount),
		custody:  new(id.Amount),
	}
}

// SetReleaseHook installs hook; nil removes it.
func (w *Memory) SetReleaseHook(hook ReleaseHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hook = hook
}

// Fund credits account from outside the system.
func (w *Memory) Fund(account id.Address, amount *id.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balanceLocked(account).Add(w.balanceLocked(account), amount)
}

// Custody returns the value currently held by the ledger.
func (w *Memory) Custody() *id.Amount {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.custody.Clone()
}

func (w *Memory) balanceLocked(account id.Address) *id.Amount {
	bal, ok := w.balances[account]
	if !ok {
		bal = new(id.Amount)
		w.balances[account] = bal
	}
	return bal
}

func (w *Memory) Collect(_ context.Context, from id.Address, amount *id.Amount) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	bal := w.balanceLocked(from)
	if bal.Lt(amount) {
		return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient wallet balance")
	}
	bal.Sub(bal, amount)
	w.custody.Add(w.custody, amount)
	return nil
}

func (w *Memory) Release(ctx context.Context, to id.Address, amount *id.Amount) error {
	w.mu.Lock()
	if w.custody.Lt(amount) {
		w.mu.Unlock()
		return dErrors.New(dErrors.CodeInvariantViolation, "custody balance too low for release")
	}
	w.custody.Sub(w.custody, amount)
	bal := w.balanceLocked(to)
	bal.Add(bal, amount)
	hook := w.hook
	w.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, to, amount); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		bal := w.balanceLocked(to)
		bal.Sub(bal, amount)
		w.custody.Add(w.custody, amount)
		return err
	}
	return nil
}

func (w *Memory) Balance(_ context.Context, account id.Address) (*id.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if bal, ok := w.balances[account]; ok {
		return bal.Clone(), nil
	}
	return new(id.Amount), nil
}
