// Package config loads, normalizes, and validates haul configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARIA2_RPC_SECRET. The Config type centralizes every knob the daemon and CLI
// need, so download directories, backend credentials, and service settings are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
