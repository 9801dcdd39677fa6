// SPDX-License-Identifier: MPL-2.0

// Package deployconfig reads the Worker deploy configuration (wrangler.jsonc,
// wrangler.json or wrangler.toml), adjusts the resolved runtime configuration
// for development, and scrubs fields that must not survive a production
// patch from the file on disk without disturbing its formatting.
package deployconfig
