package config

import "time"

// Built-in fallbacks applied last in the merge chain. The sync defaults
// match the server's paging contract and the debounce window the aggregate
// stores were tuned with.
func defaultConfig() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Role: "client",
		},
		Transport: Transport{
			RequestTimeout: 30 * time.Second,
		},
		Sync: Sync{
			PageSize:         50,
			UpdateDebounce:   300 * time.Millisecond,
			SettleTimeout:    15 * time.Second,
			MigrationRetries: 3,
		},
	}
}
