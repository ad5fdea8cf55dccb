package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors:
//   - ErrNotFound: group, token or meta row does not exist
//   - ErrConflict: an id was already taken (counter drift, duplicate insert)
//   - ErrUnavailable: backing store or wallet temporarily unreachable
//   - ErrReadOnly: a write was attempted inside a read-only view
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrReadOnly    = errors.New("read-only transaction")
)
