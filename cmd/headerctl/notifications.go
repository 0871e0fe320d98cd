// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/headerservice/cmd/headerctl/cli"
	"github.com/bureau-foundation/headerservice/lib/announce"
	"github.com/bureau-foundation/headerservice/lib/codec"
)

func notificationsCommand(stdout io.Writer) *cli.Command {
	var outputJSON, diagnostic bool
	return &cli.Command{
		Name:    "notifications",
		Summary: "List the records of a notification stream",
		Description: `Decode the CBOR notification stream written when announce.stream is set.
--diag prints each record in CBOR diagnostic notation instead, which keeps
the exact wire types.`,
		Usage: "headerctl notifications [flags] <file>",
		Flags: func(flags *pflag.FlagSet) {
			flags.BoolVar(&outputJSON, "json", false, "output as JSON")
			flags.BoolVar(&diagnostic, "diag", false, "print CBOR diagnostic notation")
		},
		Run: func(args []string) error {
			if err := requireArgs(args, "file"); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if diagnostic {
				return diagnoseStream(stdout, data)
			}
			notifications, err := announce.ReadStream(bytes.NewReader(data))
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(stdout, notifications)
			}
			tw := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBYTES\tCHECKSUM\tURL")
			for _, notification := range notifications {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", notification.ID, notification.ByteSize, notification.CheckSum, notification.URL)
			}
			return tw.Flush()
		},
	}
}

// diagnoseStream prints one line of diagnostic notation per item.
func diagnoseStream(w io.Writer, data []byte) error {
	items, err := codec.DiagnoseSequence(data)
	for _, item := range items {
		if _, writeErr := fmt.Fprintln(w, item); writeErr != nil {
			return writeErr
		}
	}
	if err != nil {
		return fmt.Errorf("diagnose notification stream: %w", err)
	}
	return nil
}
