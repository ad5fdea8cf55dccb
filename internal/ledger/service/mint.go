package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"copyroom/internal/ledger/models"
	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	audit "copyroom/pkg/platform/audit"
	"copyroom/pkg/platform/sentinel"
)

// MintGroup creates a group owned by the caller and mints cmd.Quantity tokens
// to the recipient. When the bonus is active the required bonus is funded
// from the attached payment first and the caller's bank second, then paid to
// the recipient after the transition commits. Attached payment the bonus
// does not consume is deposited to the caller's bank.
func (s *Service) MintGroup(ctx context.Context, cmd models.MintGroupCommand) (*models.MintResult, error) {
	start := time.Now()
	defer s.metrics.ObserveMint(start)
	ctx, span := s.tracer.Start(ctx, "ledger.MintGroup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("quantity", int64(cmd.Quantity)),
		attribute.Bool("bonus_active", cmd.BonusActive),
	)

	if err := s.validateQuantity(cmd.Quantity); err != nil {
		return nil, s.fail(span, "mint_group", err)
	}
	if cmd.Recipient == (id.Address{}) {
		return nil, s.fail(span, "mint_group", dErrors.New(dErrors.CodeInvalidInput, "recipient is required"))
	}
	payment := id.AmountOrZero(cmd.Payment)
	perToken := id.AmountOrZero(cmd.BonusPerToken)
	required := new(id.Amount)
	if cmd.BonusActive {
		var overflow bool
		required, overflow = id.MulAmount(perToken, cmd.Quantity)
		if overflow {
			return nil, s.fail(span, "mint_group", dErrors.New(dErrors.CodeInvalidInput, "bonus amount overflows"))
		}
	}

	if err := s.collect(ctx, cmd.Caller, payment); err != nil {
		return nil, s.fail(span, "mint_group", err)
	}

	result := &models.MintResult{
		Recipient:      cmd.Recipient,
		BonusPaid:      new(id.Amount),
		BankDebited:    new(id.Amount),
		ExcessCredited: new(id.Amount),
	}
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		if err := requireEligible(ctx, st, cmd.Caller); err != nil {
			return err
		}
		gid, err := st.AllocateGroupID(ctx)
		if err != nil {
			return err
		}
		first, err := st.AllocateTokenIDs(ctx, cmd.Quantity)
		if err != nil {
			return err
		}
		tokens := models.TokenRange{First: first, Quantity: cmd.Quantity}
		group := &models.Group{
			ID:            gid,
			Owner:         cmd.Caller,
			Members:       tokens.IDs(),
			BonusActive:   cmd.BonusActive,
			BonusPerToken: perToken,
		}
		if err := st.CreateGroup(ctx, group); err != nil {
			return err
		}
		if err := st.CreateTokens(ctx, tokens, cmd.Recipient, gid); err != nil {
			return err
		}

		excess := payment
		if cmd.BonusActive {
			funded := id.MinAmount(payment, required)
			shortfall := new(id.Amount).Sub(required, funded)
			if !shortfall.IsZero() {
				balance, err := st.Balance(ctx, cmd.Caller)
				if err != nil {
					return err
				}
				if balance.Lt(shortfall) {
					return s.insufficientFunds()
				}
				if _, err := st.Debit(ctx, cmd.Caller, shortfall); err != nil {
					return err
				}
				result.BankDebited = shortfall
			}
			excess = new(id.Amount).Sub(payment, funded)
		}
		if !excess.IsZero() {
			if _, err := st.Credit(ctx, cmd.Caller, excess); err != nil {
				return err
			}
			result.ExcessCredited = excess.Clone()
		}

		result.GroupID = gid
		result.Tokens = tokens
		return nil
	})
	if err != nil {
		s.refund(ctx, cmd.Caller, payment)
		return nil, s.fail(span, "mint_group", translateMintErr(err))
	}

	span.SetAttributes(attribute.Int64("group_id", int64(result.GroupID)))
	s.metrics.IncrementGroupsCreated()
	s.metrics.AddTokensMinted(cmd.Quantity)
	s.logAudit(ctx, string(audit.EventGroupCreated),
		"caller", cmd.Caller.Hex(),
		"group_id", result.GroupID,
		"amount", perToken.Dec(),
		"reason", bonusReason(cmd.BonusActive),
	)
	s.logAudit(ctx, string(audit.EventTokensMinted),
		"caller", cmd.Caller.Hex(),
		"subject", cmd.Recipient.Hex(),
		"group_id", result.GroupID,
		"first_token_id", result.Tokens.First,
		"quantity", cmd.Quantity,
	)
	if !result.ExcessCredited.IsZero() {
		s.logAudit(ctx, string(audit.EventExcessCredited),
			"caller", cmd.Caller.Hex(),
			"group_id", result.GroupID,
			"amount", result.ExcessCredited.Dec(),
		)
	}

	if !required.IsZero() {
		paid := s.release(ctx, cmd.Recipient, required, "bonus",
			"caller", cmd.Caller.Hex(),
			"group_id", result.GroupID,
		)
		if paid {
			result.BonusPaid = required
			s.metrics.IncrementBonusPayouts()
			s.logAudit(ctx, string(audit.EventBonusPaid),
				"caller", cmd.Caller.Hex(),
				"subject", cmd.Recipient.Hex(),
				"group_id", result.GroupID,
				"amount", required.Dec(),
			)
		} else {
			result.PayoutFailed = true
		}
	}
	return result, nil
}

// MintToGroup extends an existing group with cmd.Quantity tokens minted to
// the recipient. Only the group owner may extend it, and the bonus is never
// funded or paid on extension.
func (s *Service) MintToGroup(ctx context.Context, cmd models.MintToGroupCommand) (*models.MintResult, error) {
	start := time.Now()
	defer s.metrics.ObserveMint(start)
	ctx, span := s.tracer.Start(ctx, "ledger.MintToGroup")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("quantity", int64(cmd.Quantity)),
		attribute.Int64("group_id", int64(cmd.GroupID)),
	)

	if err := s.validateQuantity(cmd.Quantity); err != nil {
		return nil, s.fail(span, "mint_to_group", err)
	}
	if cmd.Recipient == (id.Address{}) {
		return nil, s.fail(span, "mint_to_group", dErrors.New(dErrors.CodeInvalidInput, "recipient is required"))
	}

	result := &models.MintResult{
		GroupID:        cmd.GroupID,
		Recipient:      cmd.Recipient,
		BonusPaid:      new(id.Amount),
		BankDebited:    new(id.Amount),
		ExcessCredited: new(id.Amount),
	}
	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		if err := requireGroupOwner(ctx, st, cmd.GroupID, cmd.Caller); err != nil {
			return err
		}
		if err := requireEligible(ctx, st, cmd.Caller); err != nil {
			return err
		}
		first, err := st.AllocateTokenIDs(ctx, cmd.Quantity)
		if err != nil {
			return err
		}
		tokens := models.TokenRange{First: first, Quantity: cmd.Quantity}
		if err := st.AppendMembers(ctx, cmd.GroupID, tokens); err != nil {
			return err
		}
		if err := st.CreateTokens(ctx, tokens, cmd.Recipient, cmd.GroupID); err != nil {
			return err
		}
		result.Tokens = tokens
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "mint_to_group", translateMintErr(err))
	}

	s.metrics.AddTokensMinted(cmd.Quantity)
	s.logAudit(ctx, string(audit.EventTokensMinted),
		"caller", cmd.Caller.Hex(),
		"subject", cmd.Recipient.Hex(),
		"group_id", cmd.GroupID,
		"first_token_id", result.Tokens.First,
		"quantity", cmd.Quantity,
	)
	return result, nil
}

// requireGroupOwner loads the group and checks the caller owns it.
func requireGroupOwner(ctx context.Context, st ports.Store, groupID id.GroupID, caller id.Address) error {
	group, err := st.Group(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidInput, "group does not exist")
		}
		return err
	}
	if group.Owner != caller {
		return dErrors.New(dErrors.CodeForbidden, "Insufficient permissions for group")
	}
	return nil
}

func translateMintErr(err error) error {
	switch {
	case errors.Is(err, ports.ErrBalanceOverflow):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "bank balance would overflow")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "id counter out of sync with stored ids")
	default:
		return wrapStoreErr(err, "failed to mint")
	}
}

func bonusReason(active bool) string {
	if active {
		return "bonus_active"
	}
	return "bonus_inactive"
}
