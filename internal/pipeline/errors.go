package pipeline

import "errors"

// Sentinel error kinds, wrapped with fmt.Errorf("...: %w", ...) at each call
// site rather than returned bare. ParseFailure, QueryTimeout, and
// UnresolvedReference are per-file recoverable: Run logs them and continues
// rather than aborting. IOFailure and StoreFailure abort the run.
var (
	ErrParseFailure        = errors.New("parse failure")
	ErrQueryTimeout        = errors.New("query timeout")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrSchemaViolation     = errors.New("schema violation")
	ErrIOFailure           = errors.New("io failure")
	ErrStoreFailure        = errors.New("store failure")
	ErrInvalidConfig       = errors.New("invalid config")
)
