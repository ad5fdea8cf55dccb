// Package attrs reads values back out of slog-style key/value lists.
//
// Ledger audit calls pass their attributes once, as alternating keys and
// values, and both the logger and the event publisher consume the same list.
package attrs

import "strconv"

// lookup returns the value paired with key, or nil when the key is absent or
// the list is malformed at that position.
func lookup(list []any, key string) any {
	for i := 0; i < len(list)-1; i += 2 {
		if k, ok := list[i].(string); ok && k == key {
			return list[i+1]
		}
	}
	return nil
}

// ExtractString returns the value for key as a string. Values implementing
// String() (addresses, ids) are rendered; anything else yields "".
func ExtractString(list []any, key string) string {
	switch v := lookup(list, key).(type) {
	case string:
		return v
	case interface{ String() string }:
		return v.String()
	}
	return ""
}

// ExtractUint returns the value for key as a uint64. Group and token ids
// arrive as their named types and are read through their decimal String form.
// Negative or unparseable values yield 0.
func ExtractUint(list []any, key string) uint64 {
	switch v := lookup(list, key).(type) {
	case uint64:
		return v
	case int:
		if v >= 0 {
			return uint64(v)
		}
	case interface{ String() string }:
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
