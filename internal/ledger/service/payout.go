package service

import (
	"context"

	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	audit "copyroom/pkg/platform/audit"
)

// collect pulls the attached payment into custody. Zero is a no-op.
func (s *Service) collect(ctx context.Context, from id.Address, amount *id.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.wallet.Collect(ctx, from, amount); err != nil {
		return wrapStoreErr(err, "failed to collect payment")
	}
	return nil
}

// release pays amount out of custody after a committed transition. It is
// attempted once; on failure the amount is credited to the receiver's bank so
// custody and the sum of banks stay equal. It reports whether value left.
func (s *Service) release(ctx context.Context, to id.Address, amount *id.Amount, kind string, attrs ...any) bool {
	if amount.IsZero() {
		return true
	}
	err := s.wallet.Release(ctx, to, amount)
	if err == nil {
		return true
	}

	s.metrics.IncrementPayoutFailures(kind)
	s.logger.ErrorContext(ctx, "payout failed; crediting bank",
		"kind", kind,
		"to", to.Hex(),
		"amount", amount.Dec(),
		"error", err,
	)
	s.creditFallback(ctx, to, amount, kind, attrs...)
	return false
}

// refund returns an attached payment whose transition did not commit.
func (s *Service) refund(ctx context.Context, to id.Address, amount *id.Amount) {
	s.release(ctx, to, amount, "refund")
}

func (s *Service) creditFallback(ctx context.Context, to id.Address, amount *id.Amount, kind string, attrs ...any) {
	// The caller's context may already be done; value in custody must still
	// be accounted for.
	ctx = context.WithoutCancel(ctx)
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		_, err := st.Credit(ctx, to, amount)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to credit bank after payout failure; custody needs reconciliation",
			"kind", kind,
			"to", to.Hex(),
			"amount", amount.Dec(),
			"error", err,
		)
		return
	}
	attrs = append(attrs,
		"subject", to.Hex(),
		"amount", amount.Dec(),
		"reason", kind,
	)
	s.logAudit(ctx, string(audit.EventPayoutFailed), attrs...)
}
