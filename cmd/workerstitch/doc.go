// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the workerstitch command tree: classify, dev, build
// and config.
package cmd
