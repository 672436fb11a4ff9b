// Package environment reads process environment variables for the handful of
// settings that must never live in a config file (API keys, DSNs).
package environment

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// StringOr returns the value of name, or fallback if it is unset or blank.
func StringOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// Required returns the value of name or an error naming the missing variable.
func Required(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("environment variable %q is not set", name)
	}
	return v, nil
}

// FirstSet returns the first non-blank value among names, and the name it
// came from. Both are empty when none is set.
func FirstSet(names ...string) (value, from string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(n)); v != "" {
			return v, n
		}
	}
	return "", ""
}

// DurationOr parses name as a time.Duration ("8s", "5m"), returning fallback
// when unset or unparsable.
func DurationOr(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
