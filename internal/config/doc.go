// Package config loads, normalizes, and validates bookforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file and honours
// environment fallbacks such as ANTHROPIC_API_KEY and PIXABAY_API_KEY. The
// Config type centralizes every knob the daemon and CLI need so provider
// credentials, storage locations and retry policy are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider names, and clear validation errors.
package config
