package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	audit "copyroom/pkg/platform/audit"
)

// DepositToMyBank credits the caller's bank with the attached payment.
func (s *Service) DepositToMyBank(ctx context.Context, caller id.Address, payment *id.Amount) (*id.Amount, error) {
	return s.deposit(ctx, "ledger.DepositToMyBank", caller, caller, payment)
}

// DepositToBank credits target's bank with the caller's attached payment.
func (s *Service) DepositToBank(ctx context.Context, caller, target id.Address, payment *id.Amount) (*id.Amount, error) {
	return s.deposit(ctx, "ledger.DepositToBank", caller, target, payment)
}

// OnBareTransfer handles value sent without a matching operation: it is a
// deposit to the sender's own bank.
func (s *Service) OnBareTransfer(ctx context.Context, sender id.Address, amount *id.Amount) (*id.Amount, error) {
	return s.deposit(ctx, "ledger.OnBareTransfer", sender, sender, amount)
}

func (s *Service) deposit(ctx context.Context, op string, caller, target id.Address, payment *id.Amount) (*id.Amount, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	payment = id.AmountOrZero(payment)
	span.SetAttributes(attribute.String("amount", payment.Dec()))

	if err := s.collect(ctx, caller, payment); err != nil {
		return nil, s.fail(span, "deposit", err)
	}

	var balance *id.Amount
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		var err error
		balance, err = st.Credit(ctx, target, payment)
		return err
	})
	if err != nil {
		s.refund(ctx, caller, payment)
		if errors.Is(err, ports.ErrBalanceOverflow) {
			err = dErrors.Wrap(err, dErrors.CodeInvalidInput, "deposit would overflow bank balance")
		}
		return nil, s.fail(span, "deposit", wrapStoreErr(err, "failed to deposit"))
	}

	s.metrics.IncrementDeposits()
	s.logAudit(ctx, string(audit.EventDeposited),
		"caller", caller.Hex(),
		"subject", target.Hex(),
		"amount", payment.Dec(),
	)
	return balance, nil
}

// Withdraw debits the caller's bank and then pays the amount out. If the
// payout fails the amount is returned to the bank and an unavailable error
// is reported.
func (s *Service) Withdraw(ctx context.Context, caller id.Address, amount *id.Amount) (*id.Amount, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Withdraw")
	defer span.End()
	amount = id.AmountOrZero(amount)
	span.SetAttributes(attribute.String("amount", amount.Dec()))

	if amount.IsZero() {
		return nil, s.fail(span, "withdraw", dErrors.New(dErrors.CodeInvalidInput, "amount must be positive"))
	}

	var remaining *id.Amount
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		balance, err := st.Balance(ctx, caller)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return s.insufficientFunds()
		}
		remaining, err = st.Debit(ctx, caller, amount)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "withdraw", wrapStoreErr(err, "failed to withdraw"))
	}

	if !s.release(ctx, caller, amount, "withdrawal", "caller", caller.Hex()) {
		return nil, s.fail(span, "withdraw",
			dErrors.New(dErrors.CodeUnavailable, "withdrawal payout failed; amount returned to bank"))
	}

	s.metrics.IncrementWithdrawals()
	s.logAudit(ctx, string(audit.EventWithdrawn),
		"caller", caller.Hex(),
		"amount", amount.Dec(),
	)
	return remaining, nil
}

// Balance returns account's bank balance.
func (s *Service) Balance(ctx context.Context, account id.Address) (*id.Amount, error) {
	var balance *id.Amount
	err := s.ledger.View(ctx, func(st ports.Store) error {
		var err error
		balance, err = st.Balance(ctx, account)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load balance")
	}
	return balance, nil
}

// TotalBanked returns the sum of all bank balances. It equals the value the
// wallet holds in custody whenever no operation is in flight.
func (s *Service) TotalBanked(ctx context.Context) (*id.Amount, error) {
	var total *id.Amount
	err := s.ledger.View(ctx, func(st ports.Store) error {
		var err error
		total, err = st.TotalBalance(ctx)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to sum balances")
	}
	return total, nil
}
