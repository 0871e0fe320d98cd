// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind headerctl.
//
// A [Tool] holds a flat list of [Command] values and dispatches on the
// first argument. Each command registers its pflag flags on a fresh set
// per invocation, so help output and parsing always see the same
// definitions. Malformed invocations return a [UsageError] that names
// the help to consult and, for a near-miss command or flag name, the
// closest valid spelling.
//
// [ExitError] lets a command exit non-zero after printing its own
// verdict. [WriteJSON] backs the --json output of the inspection
// commands.
package cli
