// SPDX-License-Identifier: MPL-2.0

// Package patcher rewrites the adapter's production bundle so its default
// export also dispatches to the user's worker module, and re-exports the
// worker's classes from a standalone artifact bundled next to it.
//
// The rewrite replaces the single "export { X as default };" statement the
// adapter emits. A bundle without exactly one such statement is treated as
// already patched and left alone, which makes the patch idempotent.
package patcher
