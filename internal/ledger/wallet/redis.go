package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"copyroom/internal/ledger/ports"
	id "copyroom/pkg/domain"
	dErrors "copyroom/pkg/domain-errors"
)

const (
	defaultKeyPrefix = "copyroom:wallet:"
	maxTxRetries     = 16
)

// Redis keeps wallet balances as decimal strings and moves value with
// optimistic WATCH/MULTI transactions.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	custody string
}

var _ ports.Wallet = (*Redis)(nil)

type RedisOption func(*Redis)

func WithKeyPrefix(prefix string) RedisOption {
	return func(w *Redis) {
		if prefix != "" {
			w.prefix = prefix
		}
	}
}

// NewRedis builds a wallet whose custody account is stored under custody.
func NewRedis(client redis.UniversalClient, custody string, opts ...RedisOption) *Redis {
	w := &Redis{client: client, prefix: defaultKeyPrefix, custody: custody}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Redis) accountKey(account id.Address) string {
	return w.prefix + "acct:" + strings.ToLower(account.Hex())
}

func (w *Redis) custodyKey() string {
	return w.prefix + "custody:" + w.custody
}

func (w *Redis) Collect(ctx context.Context, from id.Address, amount *id.Amount) error {
	return w.move(ctx, w.accountKey(from), w.custodyKey(), amount,
		dErrors.New(dErrors.CodeInsufficientFunds, "insufficient wallet balance"))
}

func (w *Redis) Release(ctx context.Context, to id.Address, amount *id.Amount) error {
	return w.move(ctx, w.custodyKey(), w.accountKey(to), amount,
		dErrors.New(dErrors.CodeInvariantViolation, "custody balance too low for release"))
}

func (w *Redis) Balance(ctx context.Context, account id.Address) (*id.Amount, error) {
	return readAmount(ctx, w.client, w.accountKey(account))
}

// Custody returns the value currently held by the ledger.
func (w *Redis) Custody(ctx context.Context) (*id.Amount, error) {
	return readAmount(ctx, w.client, w.custodyKey())
}

// Fund credits account from outside the system.
func (w *Redis) Fund(ctx context.Context, account id.Address, amount *id.Amount) error {
	key := w.accountKey(account)
	return w.retry(ctx, func(tx *redis.Tx) error {
		bal, err := readAmount(ctx, tx, key)
		if err != nil {
			return err
		}
		next, overflow := new(id.Amount).AddOverflow(bal, amount)
		if overflow {
			return dErrors.New(dErrors.CodeInvalidInput, "wallet balance overflow")
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next.Dec(), 0)
			return nil
		})
		return err
	}, key)
}

// move debits fromKey and credits toKey atomically. short is returned when
// fromKey cannot cover amount.
func (w *Redis) move(ctx context.Context, fromKey, toKey string, amount *id.Amount, short error) error {
	return w.retry(ctx, func(tx *redis.Tx) error {
		fromBal, err := readAmount(ctx, tx, fromKey)
		if err != nil {
			return err
		}
		if fromBal.Lt(amount) {
			return short
		}
		toBal, err := readAmount(ctx, tx, toKey)
		if err != nil {
			return err
		}
		nextTo, overflow := new(id.Amount).AddOverflow(toBal, amount)
		if overflow {
			return dErrors.New(dErrors.CodeInvalidInput, "wallet balance overflow")
		}
		nextFrom := new(id.Amount).Sub(fromBal, amount)
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, fromKey, nextFrom.Dec(), 0)
			p.Set(ctx, toKey, nextTo.Dec(), 0)
			return nil
		})
		return err
	}, fromKey, toKey)
}

func (w *Redis) retry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := w.client.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("wallet transfer: %w", redis.TxFailedErr)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readAmount(ctx context.Context, c getter, key string) (*id.Amount, error) {
	raw, err := c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return new(id.Amount), nil
		}
		return nil, fmt.Errorf("read wallet balance: %w", err)
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", raw, err)
	}
	return v, nil
}
