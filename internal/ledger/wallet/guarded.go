package wallet

import (
	"context"
	"log/slog"

	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	"copyroom/pkg/platform/circuit"
	"copyroom/pkg/platform/sentinel"
)

// Guarded fails fast while the wrapped wallet keeps erroring. Domain errors
// (insufficient balance and the like) are answers, not outages, and never
// trip the breaker.
type Guarded struct {
	next    ports.Wallet
	breaker *circuit.Breaker
	logger  *slog.Logger
}

var _ ports.Wallet = (*Guarded)(nil)

func NewGuarded(next ports.Wallet, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Collect(ctx context.Context, from id.Address, amount *id.Amount) error {
	return g.call(ctx, "collect", func() error { return g.next.Collect(ctx, from, amount) })
}

func (g *Guarded) Release(ctx context.Context, to id.Address, amount *id.Amount) error {
	return g.call(ctx, "release", func() error { return g.next.Release(ctx, to, amount) })
}

func (g *Guarded) Balance(ctx context.Context, account id.Address) (*id.Amount, error) {
	var out *id.Amount
	err := g.call(ctx, "balance", func() error {
		var err error
		out, err = g.next.Balance(ctx, account)
		return err
	})
	return out, err
}

func (g *Guarded) call(ctx context.Context, op string, fn func() error) error {
	if !g.breaker.Allow() {
		return dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUnavailable, "wallet unavailable")
	}
	err := fn()
	if err == nil || isDomainError(err) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "wallet circuit closed", "breaker", g.breaker.Name())
		}
		return err
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "wallet circuit opened",
			"breaker", g.breaker.Name(),
			"op", op,
			"error", err,
		)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "wallet unavailable")
}

func isDomainError(err error) bool {
	_, ok := dErrors.As(err)
	return ok
}
