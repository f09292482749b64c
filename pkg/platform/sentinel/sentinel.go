package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain outcomes.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrInvalidRecord: a stored row violates an invariant and was rejected at the boundary
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrUnavailable   = errors.New("unavailable")
)
