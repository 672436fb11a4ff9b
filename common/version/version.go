// Package version carries build metadata injected via -ldflags.
package version

import "runtime"

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the one-line form printed by `adminchannel version`.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime + " with " + runtime.Version()
}

// Fields is the map form reported by the status endpoint.
func Fields() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_time": BuildTime,
		"go":         runtime.Version(),
	}
}
