// Package domain holds the ledger's primitive types and their parsers.
//
// Parsers are used at trust boundaries (HTTP handlers, config) and always
// return invalid_input domain errors so handlers can map them uniformly.
package domain

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "copyroom/pkg/domain-errors"
)

// GroupID identifies a group. Group ids start at 1; zero means "no group".
type GroupID uint64

// TokenID identifies a token. Token ids start at 0.
type TokenID uint64

// Address is the fixed-width identity of an account.
type Address = common.Address

// IsNil reports whether the group id is the "no group" value.
func (g GroupID) IsNil() bool {
	return g == 0
}

func (g GroupID) String() string {
	return strconv.FormatUint(uint64(g), 10)
}

func (t TokenID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// ParseGroupID parses a positive decimal group id.
func ParseGroupID(s string) (GroupID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid group id")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "group id must be positive")
	}
	return GroupID(v), nil
}

// ParseTokenID parses a decimal token id.
func ParseTokenID(s string) (TokenID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid token id")
	}
	return TokenID(v), nil
}

// ParseAddress parses a 0x-prefixed hex account address. The zero address is
// rejected because it cannot own anything.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if !common.IsHexAddress(s) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address: "+s)
	}
	addr := common.HexToAddress(s)
	if addr == (Address{}) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "zero address is not allowed")
	}
	return addr, nil
}

// ParseAddresses parses a batch of addresses, dropping duplicates while
// preserving first-seen order.
func ParseAddresses(values []string) ([]Address, error) {
	out := make([]Address, 0, len(values))
	seen := make(map[Address]struct{}, len(values))
	for _, v := range values {
		addr, err := ParseAddress(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}
