// Package config loads, normalizes, and validates snapdiff configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SNAPDIFF_API_TOKEN and SNAPDIFF_AMQP_URL. The Config type centralizes every
// knob the daemon and CLI need: where screenshots live, how many browser
// contexts the capture pool owns, and which failing threshold applies when a
// site has none of its own.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
