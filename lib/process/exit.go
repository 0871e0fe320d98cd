// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit ends the process for the error returned by run(). A nil error
// returns normally. An error carrying an ExitCode method exits with
// that code silently, since the command has already printed its
// result. Anything else is printed as "error: ..." and exits 1.
func Exit(err error) {
	if err == nil {
		return
	}
	os.Exit(report(os.Stderr, err))
}

func report(w io.Writer, err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
