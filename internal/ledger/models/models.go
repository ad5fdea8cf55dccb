// Package models holds ledger entities and the results returned by ledger
// operations.
package models

import (
	id "copyroom/pkg/domain"
)

// Group is an ordered, append-only collection of tokens minted by one owner.
type Group struct {
	ID            id.GroupID
	Owner         id.Address
	Members       []id.TokenID
	BonusActive   bool
	BonusPerToken *id.Amount
}

// Clone returns a deep copy so callers never alias store state.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	out := *g
	out.Members = append([]id.TokenID(nil), g.Members...)
	out.BonusPerToken = id.AmountOrZero(g.BonusPerToken).Clone()
	return &out
}

// Token is a single minted item. GroupID never changes after minting.
type Token struct {
	ID      id.TokenID
	Owner   id.Address
	GroupID id.GroupID
}

// TokenRange describes quantity consecutive token ids starting at First.
type TokenRange struct {
	First    id.TokenID
	Quantity uint64
}

// IDs expands the range.
func (r TokenRange) IDs() []id.TokenID {
	out := make([]id.TokenID, 0, r.Quantity)
	for i := uint64(0); i < r.Quantity; i++ {
		out = append(out, r.First+id.TokenID(i))
	}
	return out
}

// Last returns the final id in the range. Callers must not use it on an
// empty range.
func (r TokenRange) Last() id.TokenID {
	return r.First + id.TokenID(r.Quantity-1)
}

// MintGroupCommand carries the inputs of a group creation.
type MintGroupCommand struct {
	Caller        id.Address
	Quantity      uint64
	Recipient     id.Address
	BonusPerToken *id.Amount
	BonusActive   bool
	// Payment is the value attached to the call.
	Payment *id.Amount
}

// MintToGroupCommand carries the inputs of a group extension.
type MintToGroupCommand struct {
	Caller    id.Address
	Quantity  uint64
	GroupID   id.GroupID
	Recipient id.Address
}

// MintResult reports what a mint committed and what happened to value.
type MintResult struct {
	GroupID   id.GroupID
	Tokens    TokenRange
	Recipient id.Address
	// BonusPaid is the bonus released to the recipient; zero when no bonus.
	BonusPaid *id.Amount
	// BankDebited is the shortfall taken from the caller's bank.
	BankDebited *id.Amount
	// ExcessCredited is attached payment that was not needed for the bonus
	// and was deposited to the caller's bank.
	ExcessCredited *id.Amount
	// PayoutFailed is set when the bonus could not be released and was
	// credited to the recipient's bank instead.
	PayoutFailed bool
}

// LedgerMeta is the singleton ledger state.
type LedgerMeta struct {
	Owner         id.Address
	WhitelistOnly bool
	NextGroupID   id.GroupID
	NextTokenID   id.TokenID
}
