// SPDX-License-Identifier: MPL-2.0

// Package issue carries the failures workerstitch reports to users.
//
// ActionableError names the step that failed and the file involved. A
// catalog of Markdown entries, rendered with glamour, explains the common
// failures (missing worker, unreadable deploy config, failed adapter build)
// and how to fix them.
package issue
