// SPDX-License-Identifier: MPL-2.0

// Package bundler wraps the esbuild Go API for the two jobs workerstitch needs
// from a bundler: reading the export names of a worker module from the build
// metafile, and emitting that module as a standalone ES module artifact.
//
// Both jobs share one set of rules: host-runtime virtual modules (the
// "cloudflare:" scheme, "node:" builtins) stay external, and package exports
// are resolved with the workerd condition set.
package bundler
