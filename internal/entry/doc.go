// SPDX-License-Identifier: MPL-2.0

// Package entry synthesizes the module text that stitches a user worker module
// into a runtime entry point.
//
// The same composition is used twice: the dev entry module written under the
// generated-artifacts directory, whose fetch fallback is the static-asset
// binding, and the replacement block spliced into a production bundle, whose
// fetch fallback is the adapter's own handler. In both, every class export is
// re-exported, every non-fetch handler is passed through by name, and the user
// fetch handler receives a memoized next() continuation.
package entry
