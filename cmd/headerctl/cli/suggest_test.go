// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"ab", "abc", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"convert", "covnert", 2},
		{"verify", "verfy", 1},
	}

	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			if got := levenshtein(test.a, test.b); got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
			if reverse := levenshtein(test.b, test.a); reverse != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, not symmetric", test.b, test.a, reverse)
			}
		})
	}
}

func TestClosest(t *testing.T) {
	commands := []string{"show", "convert", "verify", "notifications"}
	tests := map[string]string{
		"shwo":         "show",
		"notification": "notifications",
		"verfiy":       "verify",
		"upload":       "",
	}
	for name, want := range tests {
		if got := closest(name, commands); got != want {
			t.Errorf("closest(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
	flagSet.Bool("json", false, "")
	flagSet.StringP("extension", "e", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--jsno"}, "--json"},
		{[]string{"--extenson=PRIMARY"}, "--extension"},
		{[]string{"-e", "PRIMARY", "--jsn"}, "--json"},
		{[]string{"--completely-different"}, ""},
		{[]string{"file.fits"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
