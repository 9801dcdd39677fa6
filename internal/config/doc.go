// SPDX-License-Identifier: MPL-2.0

// Package config loads workerstitch settings using Viper with CUE as the file
// format.
//
// Settings come from built-in defaults, then the project's workerstitch.cue
// (or an explicit --config file), then WORKERSTITCH_* environment variables.
// Files are validated against the embedded CUE schema (config_schema.cue)
// before they are merged, so typos and wrong types fail with a path to the
// offending field.
package config
