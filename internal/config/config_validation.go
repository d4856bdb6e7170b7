// SPDX-License-Identifier: Apache-2.0

package config

import "strings"

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Transport.Address == "" || cfg.Transport.RequestTimeout == 0 {
		return ErrInvalidTransportConfigs
	}

	if cfg.Storage.KVPath == "" || strings.Contains(cfg.Storage.KVPath, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Sync.PageSize <= 0 || cfg.Sync.UpdateDebounce <= 0 ||
		cfg.Sync.SettleTimeout <= 0 || cfg.Sync.MigrationRetries <= 0 {
		return ErrInvalidSyncConfigs
	}

	return nil
}
