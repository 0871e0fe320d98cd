// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

type exitCode int

func (e exitCode) Error() string { return "handled" }
func (e exitCode) ExitCode() int { return int(e) }

func TestReport(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		output string
	}{
		{"plain error", errors.New("invalid config: output.directory is required"), 1, "error: invalid config: output.directory is required\n"},
		{"exit code", exitCode(3), 3, ""},
		{"wrapped exit code", fmt.Errorf("verify: %w", exitCode(1)), 1, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := report(&stderr, test.err); code != test.code {
				t.Errorf("code = %d, want %d", code, test.code)
			}
			if stderr.String() != test.output {
				t.Errorf("stderr = %q, want %q", stderr.String(), test.output)
			}
		})
	}
}
