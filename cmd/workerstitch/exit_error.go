// SPDX-License-Identifier: MPL-2.0

package cmd

import "strconv"

// ExitError carries the exit status of the adapter build or dev runtime out
// of a RunE handler so the process exits with the same code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
