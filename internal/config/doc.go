// Package config loads, normalizes, and validates squash configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment overrides such as SQUASH_FFMPEG, with an
// optional .env file loaded first. Command-line flags are applied by the CLI on
// top of the loaded Config.
package config
