// Package config supplies database connection configuration for the example
// application and its tests. DSNs come from the environment with local-dev
// fallbacks; pool settings are fixed, sensible defaults.
package config
