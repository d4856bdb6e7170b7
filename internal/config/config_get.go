package config

// GetConfig loads, merges, and validates the application configuration from
// all available sources. Defaults are merged last so any explicitly
// configured value wins.
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
