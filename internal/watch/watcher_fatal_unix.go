// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// exhausted reports inotify resource exhaustion. A project whose
// node_modules pushes past fs.inotify.max_user_watches lands here, and the
// dev session cannot keep regenerating the entry.
func exhausted(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
