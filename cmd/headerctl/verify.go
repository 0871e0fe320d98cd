// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/headerservice/cmd/headerctl/cli"
	"github.com/bureau-foundation/headerservice/lib/announce"
)

func verifyCommand(stdout io.Writer) *cli.Command {
	var algorithm string
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a file against an announced checksum",
		Description: `Compute the checksum of the file's bytes as stored and compare it with the
checkSum field of its notification. Exits 1 on mismatch.`,
		Usage: "headerctl verify [--checksum md5|blake3] <file> <digest>",
		Flags: func(flags *pflag.FlagSet) {
			flags.StringVar(&algorithm, "checksum", string(announce.MD5), "checksum algorithm (md5 or blake3)")
		},
		Run: func(args []string) error {
			if err := requireArgs(args, "file", "digest"); err != nil {
				return err
			}
			parsed, err := announce.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			actual, err := announce.Checksum(data, parsed)
			if err != nil {
				return err
			}
			if !strings.EqualFold(actual, args[1]) {
				fmt.Fprintf(stdout, "MISMATCH %s: %s %s, expected %s\n", args[0], parsed, actual, args[1])
				return &cli.ExitError{Code: 1}
			}
			_, err = fmt.Fprintf(stdout, "OK %s: %s %s\n", args[0], parsed, actual)
			return err
		},
	}
}
