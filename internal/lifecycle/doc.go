// SPDX-License-Identifier: MPL-2.0

// Package lifecycle runs build-tool plugins through their hook phases.
//
// Plugins are ordered explicitly: first by their enforcement bucket (pre,
// normal, post), then by After declarations naming plugins that must run
// first. Registration order only breaks ties. Each phase runs at most once
// per Pipeline and hooks run sequentially.
package lifecycle
