// Package ports defines the boundaries of the ledger core: the transactional
// store, the value-transfer wallet and the event publisher.
package ports

import (
	"context"
	"errors"

	"copyroom/internal/ledger/models"
	id "copyroom/pkg/domain"
	audit "copyroom/pkg/platform/audit"
)

// Store errors beyond the shared sentinels.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// MetaStore holds the singleton ledger state and the id counters.
type MetaStore interface {
	Meta(ctx context.Context) (*models.LedgerMeta, error)
	SetOwner(ctx context.Context, owner id.Address) error
	SetWhitelistOnly(ctx context.Context, enabled bool) error
	// AllocateGroupID returns the next group id and advances the counter.
	AllocateGroupID(ctx context.Context) (id.GroupID, error)
	// AllocateTokenIDs reserves n consecutive token ids and returns the first.
	AllocateTokenIDs(ctx context.Context, n uint64) (id.TokenID, error)
}

type WhitelistStore interface {
	IsWhitelisted(ctx context.Context, account id.Address) (bool, error)
	SetWhitelisted(ctx context.Context, account id.Address, allowed bool) error
}

// BankStore keeps per-account escrow balances. Unknown accounts hold zero.
type BankStore interface {
	Balance(ctx context.Context, account id.Address) (*id.Amount, error)
	Credit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error)
	Debit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error)
	TotalBalance(ctx context.Context) (*id.Amount, error)
}

type GroupStore interface {
	// CreateGroup stores the group and records it as the owner's latest.
	CreateGroup(ctx context.Context, group *models.Group) error
	Group(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	AppendMembers(ctx context.Context, groupID id.GroupID, tokens models.TokenRange) error
	SetBonusActive(ctx context.Context, groupID id.GroupID, active bool) error
	LastGroupID(ctx context.Context, owner id.Address) (id.GroupID, error)
	OwnedGroupIDs(ctx context.Context, owner id.Address) ([]id.GroupID, error)
}

// TokenStore is the token registry: ids and current owners.
type TokenStore interface {
	CreateTokens(ctx context.Context, tokens models.TokenRange, owner id.Address, groupID id.GroupID) error
	Token(ctx context.Context, tokenID id.TokenID) (*models.Token, error)
}

// Store is the transaction-scoped view over all ledger state.
type Store interface {
	MetaStore
	WhitelistStore
	BankStore
	GroupStore
	TokenStore
}

// Ledger runs serialized, all-or-nothing transitions over Store.
type Ledger interface {
	// RunInTx runs fn exclusively. Any error rolls back every write fn made.
	RunInTx(ctx context.Context, fn func(store Store) error) error
	// View runs fn against committed state. Writes are not allowed.
	View(ctx context.Context, fn func(store Store) error) error
}

// Wallet is the value-transfer primitive. Collect moves value from an account
// into the ledger's custody; Release moves custody value out to an account.
type Wallet interface {
	Collect(ctx context.Context, from id.Address, amount *id.Amount) error
	Release(ctx context.Context, to id.Address, amount *id.Amount) error
	Balance(ctx context.Context, account id.Address) (*id.Amount, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
