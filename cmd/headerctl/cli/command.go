// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Tool is a binary made of named commands, invoked as
// "<tool> <command> [flags] [args]".
type Tool struct {
	Name        string
	Description string
	Commands    []*Command

	// Stderr receives help output. Nil means os.Stderr.
	Stderr io.Writer
}

// Command is one named action of a Tool.
type Command struct {
	// Name is the command name as typed (e.g., "convert").
	Name string

	// Summary is the one-line description in the tool's command list.
	Summary string

	// Description is the longer text at the top of the command's help.
	Description string

	// Usage is the synopsis line. Empty means "<tool> <name> [flags]".
	Usage string

	Examples []Example

	// Flags registers the command's flags on a fresh set. Nil means the
	// command takes none.
	Flags func(flags *pflag.FlagSet)

	// Run receives the positional arguments left after flag parsing.
	Run func(args []string) error
}

// Example is one entry of a command's Examples help section.
type Example struct {
	Description string
	Command     string
}

// UsageError is a malformed invocation. Its message ends with a pointer
// to the relevant help.
type UsageError struct {
	Message string
	// HelpFor is the command path whose help to point at.
	HelpFor string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s\n\nRun '%s --help' for usage.", e.Message, e.HelpFor)
}

// ExitError ends the process with Code after the command has printed
// its own result. main checks for the ExitCode method.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int { return e.Code }

// Execute dispatches args[0] to the matching command.
func (t *Tool) Execute(args []string) error {
	if len(args) == 0 {
		t.PrintHelp(t.stderr())
		return &UsageError{Message: "command required", HelpFor: t.Name}
	}
	if isHelpFlag(args[0]) {
		t.PrintHelp(t.stderr())
		return nil
	}
	if strings.HasPrefix(args[0], "-") {
		return &UsageError{Message: fmt.Sprintf("expected a command before flag %q", args[0]), HelpFor: t.Name}
	}

	command := t.lookup(args[0])
	if command == nil {
		message := fmt.Sprintf("unknown command %q", args[0])
		if suggestion := closest(args[0], t.names()); suggestion != "" {
			message += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		return &UsageError{Message: message, HelpFor: t.Name}
	}
	return t.run(command, args[1:])
}

func (t *Tool) run(command *Command, args []string) error {
	path := t.Name + " " + command.Name
	if len(args) > 0 && isHelpFlag(args[0]) {
		command.PrintHelp(t.stderr(), t.Name)
		return nil
	}

	flags := command.flagSet(path)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			command.PrintHelp(t.stderr(), t.Name)
			return nil
		}
		message := err.Error()
		if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
			if suggestion := suggestFlag(args, command.flagSet(path)); suggestion != "" {
				message += fmt.Sprintf(" (did you mean %s?)", suggestion)
			}
		}
		return &UsageError{Message: message, HelpFor: path}
	}
	if command.Run == nil {
		return fmt.Errorf("%s has no action", path)
	}
	return command.Run(flags.Args())
}

// flagSet returns a new set with the command's flags registered. Parse
// errors are returned, never printed.
func (c *Command) flagSet(path string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(path, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	if c.Flags != nil {
		c.Flags(flags)
	}
	return flags
}

func (t *Tool) lookup(name string) *Command {
	for _, command := range t.Commands {
		if command.Name == name {
			return command
		}
	}
	return nil
}

func (t *Tool) names() []string {
	names := make([]string, len(t.Commands))
	for i, command := range t.Commands {
		names[i] = command.Name
	}
	return names
}

func (t *Tool) stderr() io.Writer {
	if t.Stderr == nil {
		return os.Stderr
	}
	return t.Stderr
}

// PrintHelp writes the tool description and command list to w.
func (t *Tool) PrintHelp(w io.Writer) {
	if t.Description != "" {
		fmt.Fprintf(w, "%s\n\n", t.Description)
	}
	fmt.Fprintf(w, "Usage:\n  %s <command> [flags]\n\nCommands:\n", t.Name)
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for _, command := range t.Commands {
		fmt.Fprintf(table, "  %s\t%s\n", command.Name, command.Summary)
	}
	table.Flush()
	fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", t.Name)
}

// PrintHelp writes the command's help to w. tool is the binary name.
func (c *Command) PrintHelp(w io.Writer, tool string) {
	path := tool + " " + c.Name
	switch {
	case c.Description != "":
		fmt.Fprintf(w, "%s\n\n", c.Description)
	case c.Summary != "":
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		usage = path + " [flags]"
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", usage)

	if flags := c.flagSet(path).FlagUsages(); flags != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", flags)
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for i, example := range c.Examples {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
