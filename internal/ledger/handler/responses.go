package handler

import (
	"copyroom/internal/ledger/models"
	id "copyroom/pkg/domain"
)

type WhitelistModeResponse struct {
	WhitelistOnly bool `json:"whitelist_only"`
}

type WhitelistStatusResponse struct {
	Account     string `json:"account"`
	Whitelisted bool   `json:"whitelisted"`
	Eligible    bool   `json:"eligible"`
}

// BalanceResponse reports a bank balance as a decimal string.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type MintResponse struct {
	GroupID        uint64   `json:"group_id"`
	TokenIDs       []uint64 `json:"token_ids"`
	Recipient      string   `json:"recipient"`
	BonusPaid      string   `json:"bonus_paid"`
	BankDebited    string   `json:"bank_debited"`
	ExcessCredited string   `json:"excess_credited"`
	PayoutFailed   bool     `json:"payout_failed,omitempty"`
}

func FromMintResult(res *models.MintResult) *MintResponse {
	return &MintResponse{
		GroupID:        uint64(res.GroupID),
		TokenIDs:       tokenIDs(res.Tokens.IDs()),
		Recipient:      res.Recipient.Hex(),
		BonusPaid:      id.AmountOrZero(res.BonusPaid).Dec(),
		BankDebited:    id.AmountOrZero(res.BankDebited).Dec(),
		ExcessCredited: id.AmountOrZero(res.ExcessCredited).Dec(),
		PayoutFailed:   res.PayoutFailed,
	}
}

type GroupResponse struct {
	ID            uint64   `json:"id"`
	Owner         string   `json:"owner"`
	Members       []uint64 `json:"members"`
	BonusActive   bool     `json:"bonus_active"`
	BonusPerToken string   `json:"bonus_per_token"`
}

func FromGroup(g *models.Group) *GroupResponse {
	return &GroupResponse{
		ID:            uint64(g.ID),
		Owner:         g.Owner.Hex(),
		Members:       tokenIDs(g.Members),
		BonusActive:   g.BonusActive,
		BonusPerToken: id.AmountOrZero(g.BonusPerToken).Dec(),
	}
}

type MembersResponse struct {
	GroupID uint64   `json:"group_id"`
	Members []uint64 `json:"members"`
}

type BonusStatusResponse struct {
	GroupID uint64 `json:"group_id"`
	Active  bool   `json:"active"`
}

// LastGroupResponse carries 0 when the owner has created no group.
type LastGroupResponse struct {
	Owner   string `json:"owner"`
	GroupID uint64 `json:"group_id"`
}

type OwnedGroupsResponse struct {
	Owner    string   `json:"owner"`
	GroupIDs []uint64 `json:"group_ids"`
}

type TokenResponse struct {
	ID      uint64 `json:"id"`
	Owner   string `json:"owner"`
	GroupID uint64 `json:"group_id"`
}

func FromToken(t *models.Token) *TokenResponse {
	return &TokenResponse{
		ID:      uint64(t.ID),
		Owner:   t.Owner.Hex(),
		GroupID: uint64(t.GroupID),
	}
}

func tokenIDs(ids []id.TokenID) []uint64 {
	out := make([]uint64, len(ids))
	for i, t := range ids {
		out[i] = uint64(t)
	}
	return out
}

// padGroupIDs returns ids extended with zeros to length n. A list already at
// least n long is returned whole.
func padGroupIDs(ids []id.GroupID, n int) []uint64 {
	size := max(len(ids), n)
	out := make([]uint64, size)
	for i, g := range ids {
		out[i] = uint64(g)
	}
	return out
}
