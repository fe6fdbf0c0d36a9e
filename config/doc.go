// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, the downstream resolver endpoint, and circuit
// breaker policies per dispatch key.
package config
