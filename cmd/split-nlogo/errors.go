package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"
)

// Exit codes other than OS error numbers.
const (
	exitFailure = 1
	exitUsage   = 64 // EX_USAGE; kept clear of errno values
)

// usageError marks errors in how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// reportError prints err to w and returns the exit code for it.
//
// File system errors are printed as "<reason> '<path>'" and exit with the
// OS error number, so batch wrappers can tell a missing model file from a
// full disk.
func reportError(w io.Writer, err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(w, "Error: %v\nRun 'split-nlogo --help' for usage.\n", usage.err)
		return exitUsage
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		fmt.Fprintf(w, "%v '%s'\n", pathErr.Err, pathErr.Path)
		var errno syscall.Errno
		if errors.As(pathErr.Err, &errno) && errno != 0 {
			return int(errno)
		}
		return exitFailure
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return exitFailure
}
