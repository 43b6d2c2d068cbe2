// Package env reads process environment variables with defaults.
package env

import "os"

// Get looks up key in the environment. An unset or empty variable yields
// the fallback.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
