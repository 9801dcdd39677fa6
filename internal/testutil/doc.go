// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv),
// file operations (MustWriteFile, MustReadFile, MustMkdirAll) and a small
// JavaScript harness (LoadModule, Await) that bundles a generated module with
// esbuild and evaluates it in goja, so tests can assert on runtime behavior of
// synthesized entry points rather than on their text alone.
package testutil
