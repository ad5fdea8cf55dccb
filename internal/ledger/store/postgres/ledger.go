// Package postgres is the durable ledger backend. Writers serialize on the
// singleton ledger_meta row; readers use read-only snapshots.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"copyroom/internal/ledger/ports"
	dErrors "copyroom/pkg/domain-errors"
	"copyroom/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const defaultTxTimeout = 5 * time.Second

// Migrate creates the ledger tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Ledger is the PostgreSQL ports.Ledger.
type Ledger struct {
	db      *sql.DB
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

func NewLedger(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) RunInTx(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return l.beginError(ctx, err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if _, err := sqlTx.ExecContext(ctx, `SELECT 1 FROM ledger_meta WHERE id = 1 FOR UPDATE`); err != nil {
		return l.beginError(ctx, err)
	}

	ctx = tx.WithTx(ctx, sqlTx)
	if err := fn(newStore(tx.ExecutorFrom(ctx, l.db))); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (l *Ledger) View(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	sqlTx, err := l.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return l.beginError(ctx, err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	return fn(newStore(tx.ExecutorFrom(tx.WithTx(ctx, sqlTx), l.db)))
}

func (l *Ledger) beginError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: lock wait timed out")
	}
	return fmt.Errorf("begin ledger tx: %w", err)
}
