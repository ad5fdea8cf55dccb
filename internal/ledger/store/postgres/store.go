package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"copyroom/internal/ledger/models"
	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	"copyroom/pkg/platform/sentinel"
	"copyroom/pkg/platform/tx"
)

// store is pure I/O over one SQL transaction. Business rules live in the service.
type store struct {
	exec tx.Executor
}

var _ ports.Store = (*store)(nil)

func newStore(exec tx.Executor) *store {
	return &store{exec: exec}
}

func (s *store) Meta(ctx context.Context) (*models.LedgerMeta, error) {
	var (
		owner []byte
		meta  models.LedgerMeta
		next  int64
		tok   int64
	)
	err := s.exec.QueryRowContext(ctx, `
		SELECT owner, whitelist_only, next_group_id, next_token_id
		FROM ledger_meta
		WHERE id = 1
	`).Scan(&owner, &meta.WhitelistOnly, &next, &tok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger meta: %w", err)
	}
	meta.Owner = common.BytesToAddress(owner)
	meta.NextGroupID = id.GroupID(next)
	meta.NextTokenID = id.TokenID(tok)
	return &meta, nil
}

func (s *store) SetOwner(ctx context.Context, owner id.Address) error {
	if _, err := s.exec.ExecContext(ctx, `UPDATE ledger_meta SET owner = $1 WHERE id = 1`, owner.Bytes()); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}

func (s *store) SetWhitelistOnly(ctx context.Context, enabled bool) error {
	if _, err := s.exec.ExecContext(ctx, `UPDATE ledger_meta SET whitelist_only = $1 WHERE id = 1`, enabled); err != nil {
		return fmt.Errorf("set whitelist mode: %w", err)
	}
	return nil
}

func (s *store) AllocateGroupID(ctx context.Context) (id.GroupID, error) {
	var gid int64
	err := s.exec.QueryRowContext(ctx, `
		UPDATE ledger_meta SET next_group_id = next_group_id + 1
		WHERE id = 1
		RETURNING next_group_id - 1
	`).Scan(&gid)
	if err != nil {
		return 0, fmt.Errorf("allocate group id: %w", err)
	}
	return id.GroupID(gid), nil
}

func (s *store) AllocateTokenIDs(ctx context.Context, n uint64) (id.TokenID, error) {
	var first int64
	err := s.exec.QueryRowContext(ctx, `
		UPDATE ledger_meta SET next_token_id = next_token_id + $1
		WHERE id = 1
		RETURNING next_token_id - $1
	`, int64(n)).Scan(&first)
	if err != nil {
		return 0, fmt.Errorf("allocate token ids: %w", err)
	}
	return id.TokenID(first), nil
}

func (s *store) IsWhitelisted(ctx context.Context, account id.Address) (bool, error) {
	var exists bool
	err := s.exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelist WHERE account = $1)`, account.Bytes()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("get whitelist status: %w", err)
	}
	return exists, nil
}

func (s *store) SetWhitelisted(ctx context.Context, account id.Address, allowed bool) error {
	var err error
	if allowed {
		_, err = s.exec.ExecContext(ctx,
			`INSERT INTO whitelist (account) VALUES ($1) ON CONFLICT (account) DO NOTHING`, account.Bytes())
	} else {
		_, err = s.exec.ExecContext(ctx, `DELETE FROM whitelist WHERE account = $1`, account.Bytes())
	}
	if err != nil {
		return fmt.Errorf("set whitelist status: %w", err)
	}
	return nil
}

func (s *store) Balance(ctx context.Context, account id.Address) (*id.Amount, error) {
	var raw string
	err := s.exec.QueryRowContext(ctx,
		`SELECT balance::text FROM banks WHERE account = $1`, account.Bytes()).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return new(id.Amount), nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return parseNumeric(raw)
}

func (s *store) writeBalance(ctx context.Context, account id.Address, balance *id.Amount) error {
	var err error
	if balance.IsZero() {
		_, err = s.exec.ExecContext(ctx, `DELETE FROM banks WHERE account = $1`, account.Bytes())
	} else {
		_, err = s.exec.ExecContext(ctx, `
			INSERT INTO banks (account, balance) VALUES ($1, $2::numeric)
			ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance
		`, account.Bytes(), balance.Dec())
	}
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func (s *store) Credit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error) {
	bal, err := s.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	next, overflow := new(id.Amount).AddOverflow(bal, amount)
	if overflow {
		return nil, ports.ErrBalanceOverflow
	}
	if err := s.writeBalance(ctx, account, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *store) Debit(ctx context.Context, account id.Address, amount *id.Amount) (*id.Amount, error) {
	bal, err := s.Balance(ctx, account)
	if err != nil {
		return nil, err
	}
	if bal.Lt(amount) {
		return nil, ports.ErrInsufficientBalance
	}
	next := new(id.Amount).Sub(bal, amount)
	if err := s.writeBalance(ctx, account, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *store) TotalBalance(ctx context.Context) (*id.Amount, error) {
	var raw string
	if err := s.exec.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0)::text FROM banks`).Scan(&raw); err != nil {
		return nil, fmt.Errorf("sum balances: %w", err)
	}
	return parseNumeric(raw)
}

func (s *store) CreateGroup(ctx context.Context, group *models.Group) error {
	_, err := s.exec.ExecContext(ctx, `
		INSERT INTO groups (id, owner, bonus_active, bonus_per_token)
		VALUES ($1, $2, $3, $4::numeric)
	`, int64(group.ID), group.Owner.Bytes(), group.BonusActive, id.AmountOrZero(group.BonusPerToken).Dec())
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *store) Group(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	var (
		owner []byte
		bonus string
		g     = models.Group{ID: groupID}
	)
	err := s.exec.QueryRowContext(ctx, `
		SELECT owner, bonus_active, bonus_per_token::text
		FROM groups
		WHERE id = $1
	`, int64(groupID)).Scan(&owner, &g.BonusActive, &bonus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	g.Owner = common.BytesToAddress(owner)
	if g.BonusPerToken, err = parseNumeric(bonus); err != nil {
		return nil, err
	}

	rows, err := s.exec.QueryContext(ctx, `SELECT id FROM tokens WHERE group_id = $1 ORDER BY id`, int64(groupID))
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()
	g.Members = []id.TokenID{}
	for rows.Next() {
		var tid int64
		if err := rows.Scan(&tid); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		g.Members = append(g.Members, id.TokenID(tid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return &g, nil
}

// AppendMembers only checks the group exists: membership is derived from
// tokens.group_id, which CreateTokens writes.
func (s *store) AppendMembers(ctx context.Context, groupID id.GroupID, _ models.TokenRange) error {
	var exists bool
	err := s.exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, int64(groupID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *store) SetBonusActive(ctx context.Context, groupID id.GroupID, active bool) error {
	res, err := s.exec.ExecContext(ctx, `UPDATE groups SET bonus_active = $1 WHERE id = $2`, active, int64(groupID))
	if err != nil {
		return fmt.Errorf("set group bonus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set group bonus: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *store) LastGroupID(ctx context.Context, owner id.Address) (id.GroupID, error) {
	var gid int64
	err := s.exec.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM groups WHERE owner = $1`, owner.Bytes()).Scan(&gid)
	if err != nil {
		return 0, fmt.Errorf("get last group: %w", err)
	}
	return id.GroupID(gid), nil
}

func (s *store) OwnedGroupIDs(ctx context.Context, owner id.Address) ([]id.GroupID, error) {
	rows, err := s.exec.QueryContext(ctx, `SELECT id FROM groups WHERE owner = $1 ORDER BY id`, owner.Bytes())
	if err != nil {
		return nil, fmt.Errorf("list owned groups: %w", err)
	}
	defer rows.Close()
	out := []id.GroupID{}
	for rows.Next() {
		var gid int64
		if err := rows.Scan(&gid); err != nil {
			return nil, fmt.Errorf("scan owned group: %w", err)
		}
		out = append(out, id.GroupID(gid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list owned groups: %w", err)
	}
	return out, nil
}

func (s *store) CreateTokens(ctx context.Context, tokens models.TokenRange, owner id.Address, groupID id.GroupID) error {
	_, err := s.exec.ExecContext(ctx, `
		INSERT INTO tokens (id, owner, group_id)
		SELECT g, $3, $4 FROM generate_series($1::bigint, $2::bigint) AS g
	`, int64(tokens.First), int64(tokens.Last()), owner.Bytes(), int64(groupID))
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create tokens: %w", err)
	}
	return nil
}

func (s *store) Token(ctx context.Context, tokenID id.TokenID) (*models.Token, error) {
	var (
		owner []byte
		gid   int64
	)
	err := s.exec.QueryRowContext(ctx,
		`SELECT owner, group_id FROM tokens WHERE id = $1`, int64(tokenID)).Scan(&owner, &gid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &models.Token{ID: tokenID, Owner: common.BytesToAddress(owner), GroupID: id.GroupID(gid)}, nil
}

func parseNumeric(raw string) (*id.Amount, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", raw, err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
