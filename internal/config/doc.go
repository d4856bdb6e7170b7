// Package config provides configuration loading, merging, and validation
// facilities for the application.
//
// Configuration is assembled from multiple sources; a field set by an
// earlier source wins over later ones:
//  1. Environment variables
//  2. Command-line flags
//  3. JSON config file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// The main entry point is [GetConfig].
package config
