// SPDX-License-Identifier: MPL-2.0

// workerstitch stitches a hand-written worker module into the worker an
// adapter generates, in development and after production builds.
package main

import cmd "github.com/workerstitch/workerstitch/cmd/workerstitch"

func main() {
	cmd.Execute()
}
