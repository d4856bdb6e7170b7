package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port] or a full URL
//	-kv local key/value store path
//	-identity local account identity
//	-c/-config json file path with configs
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-page-size initial load page size
//	-update-debounce digest notification debounce (e.g., "300ms")
//	-settle-timeout startup settle barrier timeout (e.g., "15s")
//	-migration-retries bounded retry budget for descriptor migration saves
func ParseFlags() *StructuredConfig {
	var serverAddress string
	var kvPath string
	var identity string
	var jsonConfigPath string
	var requestTimeout time.Duration
	var pageSize int
	var updateDebounce time.Duration
	var settleTimeout time.Duration
	var migrationRetries int

	flag.StringVar(&serverAddress, "a", "", "Keg server address host:port or URL")
	flag.StringVar(&kvPath, "kv", "", "Local key/value store path")
	flag.StringVar(&identity, "identity", "", "Local account identity")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.IntVar(&pageSize, "page-size", 0, "Initial load page size")
	flag.DurationVar(&updateDebounce, "update-debounce", 0, "Digest debounce (e.g., 300ms)")
	flag.DurationVar(&settleTimeout, "settle-timeout", 0, "Settle barrier timeout (e.g., 15s)")
	flag.IntVar(&migrationRetries, "migration-retries", 0, "Descriptor migration retry budget")

	flag.Parse()

	return &StructuredConfig{
		App: App{
			Identity: identity,
		},
		Transport: Transport{
			Address:        serverAddress,
			RequestTimeout: requestTimeout,
		},
		Sync: Sync{
			PageSize:         pageSize,
			UpdateDebounce:   updateDebounce,
			SettleTimeout:    settleTimeout,
			MigrationRetries: migrationRetries,
		},
		Storage: Storage{
			KVPath: kvPath,
		},
		JSONFilePath: jsonConfigPath,
	}
}
