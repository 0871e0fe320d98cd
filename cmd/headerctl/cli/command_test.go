// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTool(commands ...*Command) (*Tool, *bytes.Buffer) {
	var help bytes.Buffer
	return &Tool{
		Name:        "headerctl",
		Description: "Inspect and convert header files.",
		Commands:    commands,
		Stderr:      &help,
	}, &help
}

func TestExecuteDispatches(t *testing.T) {
	var called string
	tool, _ := testTool(
		&Command{Name: "show", Run: func(args []string) error { called = "show"; return nil }},
		&Command{Name: "verify", Run: func(args []string) error { called = "verify"; return nil }},
	)

	if err := tool.Execute([]string{"verify"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "verify" {
		t.Errorf("dispatched to %q, want verify", called)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var to string
	var received []string
	tool, _ := testTool(&Command{
		Name: "convert",
		Flags: func(flags *pflag.FlagSet) {
			flags.StringVar(&to, "to", "yaml", "output format")
		},
		Run: func(args []string) error {
			received = args
			return nil
		},
	})

	if err := tool.Execute([]string{"convert", "--to", "fits", "in.yaml", "out.fits"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if to != "fits" {
		t.Errorf("to = %q, want fits", to)
	}
	if len(received) != 2 || received[0] != "in.yaml" || received[1] != "out.fits" {
		t.Errorf("args = %v", received)
	}
}

func TestExecuteUsageErrors(t *testing.T) {
	tool, _ := testTool(
		&Command{Name: "convert", Run: func(args []string) error { return nil }},
		&Command{
			Name: "verify",
			Flags: func(flags *pflag.FlagSet) {
				flags.String("checksum", "md5", "checksum algorithm")
			},
			Run: func(args []string) error { return nil },
		},
	)

	tests := []struct {
		name     string
		args     []string
		contains string
		excludes string
	}{
		{"no command", nil, "command required", ""},
		{"leading flag", []string{"--json"}, `expected a command before flag "--json"`, ""},
		{"close command", []string{"covnert"}, `did you mean "convert"?`, ""},
		{"distant command", []string{"upload"}, `unknown command "upload"`, "did you mean"},
		{"close flag", []string{"verify", "--chcksum", "blake3"}, "did you mean --checksum?", ""},
		{"flag help pointer", []string{"verify", "--bogus-flag-name"}, "Run 'headerctl verify --help'", "did you mean"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := tool.Execute(test.args)
			var usage *UsageError
			if !errors.As(err, &usage) {
				t.Fatalf("error = %v, want a UsageError", err)
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("error = %q, want it to contain %q", err, test.contains)
			}
			if test.excludes != "" && strings.Contains(err.Error(), test.excludes) {
				t.Errorf("error = %q, should not contain %q", err, test.excludes)
			}
		})
	}
}

func TestExecutePropagatesExitError(t *testing.T) {
	tool, _ := testTool(&Command{
		Name: "verify",
		Run:  func(args []string) error { return &ExitError{Code: 2} },
	})
	err := tool.Execute([]string{"verify"})
	var exitError *ExitError
	if !errors.As(err, &exitError) || exitError.ExitCode() != 2 {
		t.Errorf("error = %v, want ExitError{2}", err)
	}
}

func TestHelp(t *testing.T) {
	var ran bool
	convert := &Command{
		Name:    "convert",
		Summary: "Convert a header between FITS and YAML",
		Flags: func(flags *pflag.FlagSet) {
			flags.String("to", "yaml", "output format")
		},
		Examples: []Example{{Description: "Convert to FITS", Command: "headerctl convert --to fits a.yaml a.fits"}},
		Run:      func(args []string) error { ran = true; return nil },
	}
	tool, help := testTool(convert)

	if err := tool.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute(--help): %v", err)
	}
	for _, want := range []string{"Inspect and convert header files.", "headerctl <command> [flags]", "convert", "Convert a header between FITS and YAML"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("tool help missing %q:\n%s", want, help)
		}
	}

	help.Reset()
	if err := tool.Execute([]string{"convert", "-h"}); err != nil {
		t.Fatalf("Execute(convert -h): %v", err)
	}
	if ran {
		t.Error("help should not run the command")
	}
	for _, want := range []string{"headerctl convert [flags]", "--to", "# Convert to FITS"} {
		if !strings.Contains(help.String(), want) {
			t.Errorf("convert help missing %q:\n%s", want, help)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buffer bytes.Buffer
	var empty []string
	if err := WriteJSON(&buffer, empty); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("nil slice encoded as %q", buffer.String())
	}
}
