package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	"copyroom/pkg/platform/circuit"
)

type flakyWallet struct {
	*Memory
	err error
}

func (f *flakyWallet) Release(ctx context.Context, to id.Address, amount *id.Amount) error {
	if f.err != nil {
		return f.err
	}
	return f.Memory.Release(ctx, to, amount)
}

func TestGuarded_OpensAfterInfrastructureFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	inner := &flakyWallet{Memory: NewMemory(), err: errors.New("connection refused")}
	breaker := circuit.New("wallet",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	g := NewGuarded(inner, breaker, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for range 2 {
		err := g.Release(ctx, bob, id.NewAmount(1))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	}
	assert.True(t, breaker.IsOpen())

	inner.err = nil
	err := g.Release(ctx, bob, id.NewAmount(1))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable), "open breaker short-circuits")

	now = now.Add(2 * time.Minute)
	inner.Fund(alice, id.NewAmount(1))
	require.NoError(t, g.Collect(ctx, alice, id.NewAmount(1)))
	assert.False(t, breaker.IsOpen())
}

func TestGuarded_DomainErrorsDoNotTrip(t *testing.T) {
	breaker := circuit.New("wallet", circuit.WithFailureThreshold(1))
	g := NewGuarded(NewMemory(), breaker, nil)

	err := g.Collect(context.Background(), alice, id.NewAmount(1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	assert.False(t, breaker.IsOpen())
}
