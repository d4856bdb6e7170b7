// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for kegsync.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, an optional JSON file,
// and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the role label used in
	// log entries and the local identity name.
	App App `envPrefix:"APP_"`

	// Transport holds network address and timeout settings for the keg
	// server connection.
	Transport Transport `envPrefix:"TRANSPORT_"`

	// Sync holds tuning knobs for the synchronization engine: page size,
	// debounce interval, settle timeout, migration retry budget.
	Sync Sync `envPrefix:"SYNC_"`

	// Storage holds configuration for the local key/value store used for
	// preferences and transfer-resume markers.
	Storage Storage `envPrefix:"STORAGE_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged with the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Role is the label attached to every log entry ("client" by default).
	// Env: APP_ROLE
	Role string `env:"ROLE"`

	// Identity is the local account identity used to decide migration
	// ownership of shared objects.
	// Env: APP_IDENTITY
	Identity string `env:"IDENTITY"`
}

// Transport holds network settings for the keg server connection.
type Transport struct {
	// Address is the HTTP endpoint of the keg server.
	// Env: TRANSPORT_ADDRESS
	Address string `env:"ADDRESS"`

	// RequestTimeout is the default timeout for outbound requests
	// (e.g. "30s", "1m").
	// Env: TRANSPORT_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Sync holds tuning parameters for the synchronization engine.
type Sync struct {
	// PageSize is the number of kegs requested per page during the initial
	// full load of an aggregate store.
	// Env: SYNC_PAGE_SIZE
	PageSize int `env:"PAGE_SIZE"`

	// UpdateDebounce is how long a store waits after a digest notification
	// before running an update cycle, so bursts collapse into one cycle.
	// Env: SYNC_UPDATE_DEBOUNCE
	UpdateDebounce time.Duration `env:"UPDATE_DEBOUNCE"`

	// SettleTimeout bounds the startup barrier that waits for boot and
	// folder kegs to settle before the store proceeds regardless.
	// Env: SYNC_SETTLE_TIMEOUT
	SettleTimeout time.Duration `env:"SETTLE_TIMEOUT"`

	// MigrationRetries is the bounded retry budget for a single descriptor
	// migration save before the object reverts to legacy format.
	// Env: SYNC_MIGRATION_RETRIES
	MigrationRetries int `env:"MIGRATION_RETRIES"`
}

// Storage groups the configuration for local persistence.
type Storage struct {
	// KVPath is the path of the SQLite file backing the local key/value
	// store. Must not be an in-memory database; resume markers have to
	// survive restarts.
	// Env: STORAGE_KV_PATH
	KVPath string `env:"KV_PATH"`
}
