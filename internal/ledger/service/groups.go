package service

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"copyroom/internal/ledger/models"
	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
	audit "copyroom/pkg/platform/audit"
	"copyroom/pkg/platform/sentinel"
)

// SetActiveBonusForGroup toggles the group's bonus flag. Group owner only.
func (s *Service) SetActiveBonusForGroup(ctx context.Context, caller id.Address, groupID id.GroupID, active bool) error {
	ctx, span := s.tracer.Start(ctx, "ledger.SetActiveBonusForGroup")
	defer span.End()
	span.SetAttributes(attribute.Int64("group_id", int64(groupID)), attribute.Bool("active", active))

	err := s.ledger.RunInTx(ctx, func(st ports.Store) error {
		if err := requireGroupOwner(ctx, st, groupID, caller); err != nil {
			return err
		}
		return st.SetBonusActive(ctx, groupID, active)
	})
	if err != nil {
		return s.fail(span, "set_group_bonus", wrapStoreErr(err, "failed to set group bonus"))
	}
	s.logAudit(ctx, string(audit.EventBonusToggled),
		"caller", caller.Hex(),
		"group_id", groupID,
		"reason", strconv.FormatBool(active),
	)
	return nil
}

// LastGroupIDByOwner returns the most recent group created by owner, or the
// nil group id when there is none.
func (s *Service) LastGroupIDByOwner(ctx context.Context, owner id.Address) (id.GroupID, error) {
	var gid id.GroupID
	err := s.ledger.View(ctx, func(st ports.Store) error {
		var err error
		gid, err = st.LastGroupID(ctx, owner)
		return err
	})
	if err != nil {
		return 0, wrapStoreErr(err, "failed to load last group")
	}
	return gid, nil
}

// GroupMembers returns the group's token ids in mint order. Unknown groups
// have no members.
func (s *Service) GroupMembers(ctx context.Context, groupID id.GroupID) ([]id.TokenID, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return []id.TokenID{}, nil
	}
	return group.Members, nil
}

// OwnedGroupIDsByOwner returns every group owner created, oldest first.
func (s *Service) OwnedGroupIDsByOwner(ctx context.Context, owner id.Address) ([]id.GroupID, error) {
	var owned []id.GroupID
	err := s.ledger.View(ctx, func(st ports.Store) error {
		var err error
		owned, err = st.OwnedGroupIDs(ctx, owner)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load owned groups")
	}
	return owned, nil
}

// IsGroupBonusActive reports the group's bonus flag. Unknown groups report false.
func (s *Service) IsGroupBonusActive(ctx context.Context, groupID id.GroupID) (bool, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return group != nil && group.BonusActive, nil
}

// Group returns the full group view.
func (s *Service) Group(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	group, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "group not found")
	}
	return group, nil
}

// findGroup returns nil without error when the group does not exist.
func (s *Service) findGroup(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	var group *models.Group
	err := s.ledger.View(ctx, func(st ports.Store) error {
		g, err := st.Group(ctx, groupID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		group = g
		return err
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load group")
	}
	return group, nil
}

// Token returns the token registry entry.
func (s *Service) Token(ctx context.Context, tokenID id.TokenID) (*models.Token, error) {
	var token *models.Token
	err := s.ledger.View(ctx, func(st ports.Store) error {
		var err error
		token, err = st.Token(ctx, tokenID)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "token not found")
		}
		return nil, wrapStoreErr(err, "failed to load token")
	}
	return token, nil
}

// OwnerOf returns the token's current owner.
func (s *Service) OwnerOf(ctx context.Context, tokenID id.TokenID) (id.Address, error) {
	token, err := s.Token(ctx, tokenID)
	if err != nil {
		return id.Address{}, err
	}
	return token.Owner, nil
}

// GroupOf returns the group the token was minted into.
func (s *Service) GroupOf(ctx context.Context, tokenID id.TokenID) (id.GroupID, error) {
	token, err := s.Token(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return token.GroupID, nil
}
