package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidTransportConfigs indicates invalid transport settings
	// (for example, missing server address or zero request timeout).
	ErrInvalidTransportConfigs = errors.New("invalid transport configuration")
	// ErrInvalidStorageConfigs indicates invalid local storage settings
	// (for example, empty or in-memory KV path).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync tuning settings
	// (for example, non-positive page size).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
)
