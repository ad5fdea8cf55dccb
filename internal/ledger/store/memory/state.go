// Package memory is the in-process ledger backend. Transitions hold an
// exclusive lock and journal an undo step for every write, so a failed
// transition leaves no trace.
package memory

import (
	"context"

	"copyroom/internal/ledger/models"
	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	"copyroom/pkg/platform/sentinel"
)

// state is the whole ledger. It is only touched through a txStore.
type state struct {
	meta        models.LedgerMeta
	whitelisted map[id.Address]bool
	banks       map[id.Address]*id.Amount
	groups      map[id.GroupID]*models.Group
	tokens      map[id.TokenID]*models.Token
	lastGroup   map[id.Address]id.GroupID
	ownedGroups map[id.Address][]id.GroupID
}

func newState() *state {
	return &state{
		meta: models.LedgerMeta{
			WhitelistOnly: true,
			NextGroupID:   1,
			NextTokenID:   0,
		},
		whitelisted: make(map[id.Address]bool),
		banks:       make(map[id.Address]*id.Amount),
		groups:      make(map[id.GroupID]*models.Group),
		tokens:      make(map[id.TokenID]*models.Token),
		lastGroup:   make(map[id.Address]id.GroupID),
		ownedGroups: make(map[id.Address][]id.GroupID),
	}
}

// txStore implements ports.Store over state. When readOnly is set every write
// fails; otherwise each write appends its inverse to undo.
type txStore struct {
	st       *state
	readOnly bool
	undo     []func()
}

var _ ports.Store = (*txStore)(nil)

var errReadOnly = sentinel.ErrReadOnly

func (s *txStore) record(fn func()) {
	s.undo = append(s.undo, fn)
}

func (s *txStore) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
}

func (s *txStore) Meta(_ context.Context) (*models.LedgerMeta, error) {
	m := s.st.meta
	return &m, nil
}

func (s *txStore) SetOwner(_ context.Context, owner id.Address) error {
	if s.readOnly {
		return errReadOnly
	}
	prev := s.st.meta.Owner
	s.st.meta.Owner = owner
	s.record(func() { s.st.meta.Owner = prev })
	return nil
}

func (s *txStore) SetWhitelistOnly(_ context.Context, enabled bool) error {
	if s.readOnly {
		return errReadOnly
	}
	prev := s.st.meta.WhitelistOnly
	s.st.meta.WhitelistOnly = enabled
	s.record(func() { s.st.meta.WhitelistOnly = prev })
	return nil
}

func (s *txStore) AllocateGroupID(_ context.Context) (id.GroupID, error) {
	if s.readOnly {
		return 0, errReadOnly
	}
	gid := s.st.meta.NextGroupID
	s.st.meta.NextGroupID++
	s.record(func() { s.st.meta.NextGroupID = gid })
	return gid, nil
}

func (s *txStore) AllocateTokenIDs(_ context.Context, n uint64) (id.TokenID, error) {
	if s.readOnly {
		return 0, errReadOnly
	}
	first := s.st.meta.NextTokenID
	s.st.meta.NextTokenID += id.TokenID(n)
	s.record(func() { s.st.meta.NextTokenID = first })
	return first, nil
}

func (s *txStore) IsWhitelisted(_ context.Context, account id.Address) (bool, error) {
	return s.st.whitelisted[account], nil
}

func (s *txStore) SetWhitelisted(_ context.Context, account id.Address, allowed bool) error {
	if s.readOnly {
		return errReadOnly
	}
	prev, had := s.st.whitelisted[account]
	if allowed {
		s.st.whitelisted[account] = true
	} else {
		delete(s.st.whitelisted, account)
	}
	s.record(func() {
		if had {
			s.st.whitelisted[account] = prev
		} else {
			delete(s.st.whitelisted, account)
		}
	})
	return nil
}

func (s *txStore) Balance(_ context.Context, account id.Address) (*id.Amount, error) {
	if bal, ok := s.st.banks[account]; ok {
		return bal.Clone(), nil
	}
	return new(id.Amount), nil
}

func (s *txStore) setBalance(account id.Address, next *id.Amount) {
	prev, had := s.st.banks[account]
	if next.IsZero() {
		delete(s.st.banks, account)
	} else {
		s.st.banks[account] = next
	}
	s.record(func() {
		if had {
			s.st.banks[account] = prev
		} else {
			delete(s.st.banks, account)
		}
	})
}

func (s *txStore) Credit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error) {
	if s.readOnly {
		return nil, errReadOnly
	}
	bal, _ := s.Balance(ctx, account)
	next, overflow := new(id.Amount).AddOverflow(bal, amount)
	if overflow {
		return nil, ports.ErrBalanceOverflow
	}
	s.setBalance(account, next)
	return next.Clone(), nil
}

func (s *txStore) Debit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error) {
	if s.readOnly {
		return nil, errReadOnly
	}
	bal, _ := s.Balance(ctx, account)
	if bal.Lt(amount) {
		return nil, ports.ErrInsufficientBalance
	}
	next := new(id.Amount).Sub(bal, amount)
	s.setBalance(account, next)
	return next.Clone(), nil
}

func (s *txStore) TotalBalance(_ context.Context) (*id.Amount, error) {
	total := new(id.Amount)
	for _, bal := range s.st.banks {
		total.Add(total, bal)
	}
	return total, nil
}

func (s *txStore) CreateGroup(_ context.Context, group *models.Group) error {
	if s.readOnly {
		return errReadOnly
	}
	if _, exists := s.st.groups[group.ID]; exists {
		return sentinel.ErrConflict
	}
	owner := group.Owner
	s.st.groups[group.ID] = group.Clone()
	prevLast, hadLast := s.st.lastGroup[owner]
	prevOwned := s.st.ownedGroups[owner]
	s.st.lastGroup[owner] = group.ID
	s.st.ownedGroups[owner] = append(append([]id.GroupID(nil), prevOwned...), group.ID)
	s.record(func() {
		delete(s.st.groups, group.ID)
		if hadLast {
			s.st.lastGroup[owner] = prevLast
		} else {
			delete(s.st.lastGroup, owner)
		}
		if prevOwned == nil {
			delete(s.st.ownedGroups, owner)
		} else {
			s.st.ownedGroups[owner] = prevOwned
		}
	})
	return nil
}

func (s *txStore) Group(_ context.Context, groupID id.GroupID) (*models.Group, error) {
	g, ok := s.st.groups[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *txStore) AppendMembers(_ context.Context, groupID id.GroupID, tokens models.TokenRange) error {
	if s.readOnly {
		return errReadOnly
	}
	g, ok := s.st.groups[groupID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prevLen := len(g.Members)
	g.Members = append(g.Members, tokens.IDs()...)
	s.record(func() { g.Members = g.Members[:prevLen] })
	return nil
}

func (s *txStore) SetBonusActive(_ context.Context, groupID id.GroupID, active bool) error {
	if s.readOnly {
		return errReadOnly
	}
	g, ok := s.st.groups[groupID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := g.BonusActive
	g.BonusActive = active
	s.record(func() { g.BonusActive = prev })
	return nil
}

func (s *txStore) LastGroupID(_ context.Context, owner id.Address) (id.GroupID, error) {
	return s.st.lastGroup[owner], nil
}

func (s *txStore) OwnedGroupIDs(_ context.Context, owner id.Address) ([]id.GroupID, error) {
	return append([]id.GroupID{}, s.st.ownedGroups[owner]...), nil
}

func (s *txStore) CreateTokens(_ context.Context, tokens models.TokenRange, owner id.Address, groupID id.GroupID) error {
	if s.readOnly {
		return errReadOnly
	}
	ids := tokens.IDs()
	for _, tid := range ids {
		if _, exists := s.st.tokens[tid]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, tid := range ids {
		s.st.tokens[tid] = &models.Token{ID: tid, Owner: owner, GroupID: groupID}
	}
	s.record(func() {
		for _, tid := range ids {
			delete(s.st.tokens, tid)
		}
	})
	return nil
}

func (s *txStore) Token(_ context.Context, tokenID id.TokenID) (*models.Token, error) {
	t, ok := s.st.tokens[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *t
	return &out, nil
}
