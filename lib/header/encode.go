// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRecordTooLong means a record does not fit the card format even
	// with the long-string convention.
	ErrRecordTooLong = errors.New("record does not fit in a header card")

	// ErrUnencodableValue means a keyword, value, or comment cannot be
	// represented in the chosen encoding (NaN, non-ASCII text, ...).
	ErrUnencodableValue = errors.New("value cannot be encoded")

	// ErrMalformedHeader means decoding found input that is not a
	// header in the expected encoding.
	ErrMalformedHeader = errors.New("malformed header")
)

// Format selects the serialized form of a document.
type Format string

const (
	// FormatFITS is a sequence of header-only FITS HDUs: 80-character
	// cards in 2880-byte blocks, one HDU per extension.
	FormatFITS Format = "fits"

	// FormatYAML is the flat text form
	// {extension: [{keyword, value, comment}, ...]}.
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "fits" or "yaml" case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "fits", "string":
		return FormatFITS, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown header format %q (want fits or yaml)", s)
	}
}

// MimeType is the mimeType announced for documents in this format.
func (f Format) MimeType() string { return strings.ToUpper(string(f)) }

// Encode serializes doc. Extension and record order are preserved.
func Encode(doc *Document, format Format) ([]byte, error) {
	if doc == nil || len(doc.extensions) == 0 {
		return nil, errors.New("encode: document has no extensions")
	}
	switch format {
	case FormatFITS:
		return encodeFITS(doc)
	case FormatYAML:
		return encodeYAML(doc)
	default:
		return nil, fmt.Errorf("encode: unknown format %q", format)
	}
}

// Decode parses a document serialized by Encode. Decode(Encode(d))
// yields the same records in the same order.
func Decode(data []byte, format Format) (*Document, error) {
	switch format {
	case FormatFITS:
		return decodeFITS(data)
	case FormatYAML:
		return decodeYAML(data)
	default:
		return nil, fmt.Errorf("decode: unknown format %q", format)
	}
}

// DetectFormat guesses the format of serialized data from its first
// bytes.
func DetectFormat(data []byte) Format {
	if strings.HasPrefix(string(data), "SIMPLE  =") {
		return FormatFITS
	}
	return FormatYAML
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
