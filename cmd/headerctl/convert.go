// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/headerservice/cmd/headerctl/cli"
	"github.com/bureau-foundation/headerservice/lib/header"
)

func convertCommand() *cli.Command {
	var to string
	return &cli.Command{
		Name:    "convert",
		Summary: "Re-encode a header as FITS or YAML",
		Description: `Read a header in either format and write it in the format given by --to.
An output name ending in .zst or .lz4 is compressed accordingly.`,
		Usage: "headerctl convert --to yaml|fits <in> <out>",
		Flags: func(flags *pflag.FlagSet) {
			flags.StringVar(&to, "to", "yaml", "output format (yaml or fits)")
		},
		Examples: []cli.Example{
			{Description: "Make a FITS header readable", Command: "headerctl convert --to yaml header.fits header.yaml"},
			{Description: "Compress for upload", Command: "headerctl convert --to fits header.yaml header.fits.zst"},
		},
		Run: func(args []string) error {
			if err := requireArgs(args, "in", "out"); err != nil {
				return err
			}
			format, err := header.ParseFormat(to)
			if err != nil {
				return err
			}
			doc, from, err := readHeaderFile(args[0])
			if err != nil {
				return err
			}
			size, err := writeHeaderFile(args[1], doc, format)
			if err != nil {
				return err
			}
			cli.NewCommandLogger().With("command", "convert").Info("header converted",
				"input", args[0],
				"input_format", string(from),
				"output", args[1],
				"output_format", string(format),
				"byte_size", size,
			)
			return nil
		},
	}
}
