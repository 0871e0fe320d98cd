// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import "strings"

// SplitEscaped splits s on sep, honoring backslash escapes: "\<sep>"
// is a literal separator and "\\" is a literal backslash. A backslash
// before any other character is kept as-is, as is a trailing backslash.
//
//	SplitEscaped(`OBJECT:2020-06-16T18\:43\:55.039:OBJECT`, ':')
//	  → ["OBJECT", "2020-06-16T18:43:55.039", "OBJECT"]
//
// An empty string yields a single empty field, matching strings.Split.
func SplitEscaped(s string, sep rune) []string {
	var (
		fields  []string
		current strings.Builder
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			if r != sep && r != '\\' {
				current.WriteRune('\\')
			}
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == sep:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	return append(fields, current.String())
}
