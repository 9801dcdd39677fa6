// SPDX-License-Identifier: MPL-2.0

// Package exports classifies the exported bindings of a user worker module.
//
// A worker module may export lifecycle handlers (fetch, scheduled, queue, ...)
// and any number of other bindings. Handlers are recognized purely by name;
// every other export except "default" is treated as an opaque re-exportable
// binding and lands in Record.Classes, whether or not it is a class at runtime.
package exports
