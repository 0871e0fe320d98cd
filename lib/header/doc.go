// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package header builds and serializes per-image header documents.
//
// A [Document] is an ordered list of extensions, each an ordered list of
// [Record] values with unique keywords. Documents are never built from
// scratch: a [TemplateSet] (the schema) is deep-copied by
// [TemplateSet.Instantiate] into one PRIMARY extension, optional
// per-sensor primaries, and sixteen segment extensions per sensor.
// After that only values change. [Document.UpdateRecord] silently
// ignores keywords the template does not define, and
// [Document.LoadGeometry] rewrites the geometry records whenever better
// readout parameters arrive.
//
// Two encodings are supported. [FormatFITS] writes one header-only HDU
// per extension as 80-character cards in 2880-byte blocks, using the
// HIERARCH convention for long keywords and CONTINUE cards for long
// strings. [FormatYAML] writes the flat text form
//
//	PRIMARY:
//	  - keyword: EXPTIME
//	    value: 15.0
//	    comment: Exposure time in seconds
//
// Both round-trip: [Decode] of [Encode] returns the same keywords,
// values, and comments in the same order, with integers and floats
// kept distinct and floats at full precision.
//
// Templates use the YAML form. The embedded sets "atscam" (one sensor)
// and "lsstcam" (many sensors) are available from [DefaultTemplates].
package header
