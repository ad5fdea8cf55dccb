package service

import (
	"context"
	"errors"

	"copyroom/internal/ledger/models"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	audit "copyroom/pkg/platform/audit"
)

var errReceiverRejects = errors.New("receiver rejects value")

// =============================================================================
// Payout failure
// =============================================================================

func (s *ServiceSuite) TestBonusPayoutFailureCreditsRecipientBank() {
	s.whitelist(accountB)
	s.wallet.SetReleaseHook(func(_ context.Context, to id.Address, _ *id.Amount) error {
		if to == recipient {
			return errReceiverRejects
		}
		return nil
	})
	before := s.walletBalance(recipient)

	res, err := s.service.MintGroup(s.ctx, models.MintGroupCommand{
		Caller: accountB, Quantity: 4, Recipient: recipient,
		BonusPerToken: id.NewAmount(25), BonusActive: true,
		Payment: id.NewAmount(100),
	})
	s.Require().NoError(err, "mint stays committed when the payout fails")
	s.True(res.PayoutFailed)
	s.True(res.BonusPaid.IsZero())

	s.Equal(before, s.walletBalance(recipient))
	s.Equal(uint64(100), s.bank(recipient), "undeliverable bonus is banked for the recipient")
	s.Equal(1, s.eventCount(audit.EventPayoutFailed))
	s.Equal(0, s.eventCount(audit.EventBonusPaid))

	members, err := s.service.GroupMembers(s.ctx, res.GroupID)
	s.Require().NoError(err)
	s.Len(members, 4)
	s.assertCustodyMatchesBanks()

	s.Run("recipient can later withdraw the credited bonus", func() {
		s.wallet.SetReleaseHook(nil)
		_, err := s.service.Withdraw(s.ctx, recipient, id.NewAmount(100))
		s.Require().NoError(err)
		s.Equal(before+100, s.walletBalance(recipient))
		s.assertCustodyMatchesBanks()
	})
}

func (s *ServiceSuite) TestWithdrawPayoutFailureRestoresBank() {
	_, err := s.service.DepositToMyBank(s.ctx, accountA, id.NewAmount(10))
	s.Require().NoError(err)
	s.wallet.SetReleaseHook(func(context.Context, id.Address, *id.Amount) error {
		return errReceiverRejects
	})
	walletBefore := s.walletBalance(accountA)

	_, err = s.service.Withdraw(s.ctx, accountA, id.NewAmount(10))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	s.Equal(uint64(10), s.bank(accountA))
	s.Equal(walletBefore, s.walletBalance(accountA))
	s.Equal(0, s.eventCount(audit.EventWithdrawn))
	s.assertCustodyMatchesBanks()
}

// =============================================================================
// Re-entrancy
// =============================================================================
// A receiver that calls back into the ledger while being paid must see the
// committed state and must not deadlock.

func (s *ServiceSuite) TestReceiverCallsBackDuringBonusPayout() {
	s.whitelist(accountB)
	_, err := s.service.DepositToMyBank(s.ctx, recipient, id.NewAmount(3))
	s.Require().NoError(err)

	var (
		observedGroup id.GroupID
		withdrawErr   error
		calledBack    bool
	)
	s.wallet.SetReleaseHook(func(ctx context.Context, to id.Address, _ *id.Amount) error {
		if to != recipient || calledBack {
			return nil
		}
		calledBack = true
		var err error
		observedGroup, err = s.service.LastGroupIDByOwner(ctx, accountB)
		if err != nil {
			return err
		}
		_, withdrawErr = s.service.Withdraw(ctx, recipient, id.NewAmount(3))
		return nil
	})

	res, err := s.service.MintGroup(s.ctx, models.MintGroupCommand{
		Caller: accountB, Quantity: 2, Recipient: recipient,
		BonusPerToken: id.NewAmount(5), BonusActive: true,
		Payment: id.NewAmount(10),
	})
	s.Require().NoError(err)
	s.True(calledBack)
	s.False(res.PayoutFailed)
	s.Equal(res.GroupID, observedGroup, "callback sees the committed group")
	s.Require().NoError(withdrawErr)
	s.Equal(uint64(0), s.bank(recipient))
	s.assertCustodyMatchesBanks()
}

func (s *ServiceSuite) TestReceiverCannotDoubleWithdraw() {
	_, err := s.service.DepositToMyBank(s.ctx, accountA, id.NewAmount(5))
	s.Require().NoError(err)

	var nestedErr error
	nested := false
	s.wallet.SetReleaseHook(func(ctx context.Context, to id.Address, _ *id.Amount) error {
		if to != accountA || nested {
			return nil
		}
		nested = true
		_, nestedErr = s.service.Withdraw(ctx, accountA, id.NewAmount(5))
		return nil
	})

	_, err = s.service.Withdraw(s.ctx, accountA, id.NewAmount(5))
	s.Require().NoError(err)
	s.Require().Error(nestedErr, "balance was debited before the payout")
	s.True(dErrors.HasCode(nestedErr, dErrors.CodeInsufficientFunds))
	s.Equal(uint64(0), s.bank(accountA))
	s.assertCustodyMatchesBanks()
}
