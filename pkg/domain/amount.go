package domain

import (
	"strings"

	"github.com/holiman/uint256"

	dErrors "copyroom/pkg/domain-errors"
)

// Amount is an unsigned 256-bit quantity of the native unit.
type Amount = uint256.Int

// ParseAmount parses a decimal or 0x-prefixed hex amount. An empty string is
// treated as zero so optional payment fields can be omitted.
func ParseAmount(s string) (*Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(Amount), nil
	}
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		// FromHex rejects leading zeros; "0x0a" and "0x00" are still valid amounts.
		digits := strings.TrimLeft(s[2:], "0")
		if digits == "" && len(s) > 2 {
			digits = "0"
		}
		v, err = uint256.FromHex("0x" + strings.ToLower(digits))
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid amount: "+s)
	}
	return v, nil
}

// NewAmount returns an amount holding v.
func NewAmount(v uint64) *Amount {
	return uint256.NewInt(v)
}

// MulAmount multiplies a per-unit amount by a count, reporting overflow.
func MulAmount(perUnit *Amount, count uint64) (*Amount, bool) {
	return new(Amount).MulOverflow(perUnit, uint256.NewInt(count))
}

// MinAmount returns a copy of the smaller of a and b.
func MinAmount(a, b *Amount) *Amount {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

// AmountOrZero returns a, or a fresh zero amount when a is nil.
func AmountOrZero(a *Amount) *Amount {
	if a == nil {
		return new(Amount)
	}
	return a
}
