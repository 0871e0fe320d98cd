// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/headerservice/cmd/headerctl/cli"
	"github.com/bureau-foundation/headerservice/lib/header"
)

type recordView struct {
	Keyword string `json:"keyword"`
	Value   any    `json:"value"`
	Comment string `json:"comment,omitempty"`
}

type extensionView struct {
	Name    string       `json:"name"`
	Records []recordView `json:"records"`
}

func showCommand(stdout io.Writer) *cli.Command {
	var extension string
	var outputJSON bool
	return &cli.Command{
		Name:    "show",
		Summary: "Print the records of a header file",
		Usage:   "headerctl show [flags] <file>",
		Flags: func(flags *pflag.FlagSet) {
			flags.StringVarP(&extension, "extension", "e", "", "print only this extension")
			flags.BoolVar(&outputJSON, "json", false, "output as JSON")
		},
		Examples: []cli.Example{
			{Description: "Show the primary header", Command: "headerctl show -e PRIMARY ATHeaderService_header_AT_O_20240101_000001.fits"},
		},
		Run: func(args []string) error {
			if err := requireArgs(args, "file"); err != nil {
				return err
			}
			doc, _, err := readHeaderFile(args[0])
			if err != nil {
				return err
			}
			views, err := viewExtensions(doc, extension)
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(stdout, views)
			}
			return printExtensions(stdout, views)
		},
	}
}

func viewExtensions(doc *header.Document, only string) ([]extensionView, error) {
	var views []extensionView
	for _, extension := range doc.Extensions() {
		if only != "" && extension.Name() != only {
			continue
		}
		view := extensionView{Name: extension.Name(), Records: []recordView{}}
		for _, record := range extension.Records() {
			view.Records = append(view.Records, recordView(record))
		}
		views = append(views, view)
	}
	if only != "" && len(views) == 0 {
		return nil, fmt.Errorf("no extension %q (have %v)", only, doc.Names())
	}
	return views, nil
}

func printExtensions(w io.Writer, views []extensionView) error {
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for i, view := range views {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "[%s]\n", view.Name)
		for _, record := range view.Records {
			value := "null"
			if record.Value != nil {
				value = fmt.Sprintf("%v", record.Value)
			}
			if record.Comment != "" {
				fmt.Fprintf(tw, "%s\t= %s\t/ %s\n", record.Keyword, value, record.Comment)
			} else {
				fmt.Fprintf(tw, "%s\t= %s\t\n", record.Keyword, value)
			}
		}
	}
	return tw.Flush()
}
