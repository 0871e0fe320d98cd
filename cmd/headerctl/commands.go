// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bureau-foundation/headerservice/cmd/headerctl/cli"
	"github.com/bureau-foundation/headerservice/lib/announce"
	"github.com/bureau-foundation/headerservice/lib/header"
	"github.com/bureau-foundation/headerservice/lib/version"
)

func root(stdout io.Writer) *cli.Tool {
	return &cli.Tool{
		Name:        "headerctl",
		Description: "Inspect, convert, and verify header service output.",
		Commands: []*cli.Command{
			showCommand(stdout),
			convertCommand(),
			verifyCommand(stdout),
			notificationsCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					_, err := fmt.Fprintln(stdout, "headerctl", version.Full())
					return err
				},
			},
		},
	}
}

// readHeaderFile loads a FITS or YAML header, decompressing it first
// when the name carries a compression suffix.
func readHeaderFile(path string) (*header.Document, header.Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	data, err = announce.Decompress(data, announce.CompressionForName(path))
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	format := header.DetectFormat(data)
	doc, err := header.Decode(data, format)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return doc, format, nil
}

// writeHeaderFile encodes doc and writes it, compressing when the name
// carries a compression suffix.
func writeHeaderFile(path string, doc *header.Document, format header.Format) (int, error) {
	data, err := header.Encode(doc, format)
	if err != nil {
		return 0, err
	}
	data, err = announce.Compress(data, announce.CompressionForName(path))
	if err != nil {
		return 0, err
	}
	if err := header.WriteFile(path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func requireArgs(args []string, names ...string) error {
	if len(args) != len(names) {
		return fmt.Errorf("expected %d arguments (%s), got %d", len(names), strings.Join(names, " "), len(args))
	}
	return nil
}
