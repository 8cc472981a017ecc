// Package config loads, normalizes, and validates logshard configuration.
//
// Configuration comes from an optional TOML file with [server], [client], and
// [logging] sections. Command-line flags are layered on top by the cmd
// package, so every field here has a usable default and a missing file is not
// an error. Paths are expanded (including ~) and made absolute during Load so
// downstream packages never resolve paths themselves.
package config
