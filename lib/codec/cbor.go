// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Untyped maps decode as map[string]any and untyped integers as
		// int64, the shapes lib/telemetry normalizes sample fields to.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR item from data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

type (
	// Encoder writes a CBOR sequence.
	Encoder = cbor.Encoder
	// Decoder reads a CBOR sequence.
	Decoder = cbor.Decoder
)

// NewEncoder returns an encoder appending items to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading items from r until io.EOF.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the diagnostic notation (RFC 8949 §8) of the single
// item in data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// DiagnoseSequence returns the diagnostic notation of each item in a
// CBOR sequence, in order. An error names the byte offset of the item
// that could not be read.
func DiagnoseSequence(data []byte) ([]string, error) {
	var items []string
	for rest := data; len(rest) > 0; {
		notation, next, err := cbor.DiagnoseFirst(rest)
		if err != nil {
			return items, fmt.Errorf("item %d at byte %d: %w", len(items), len(data)-len(rest), err)
		}
		items = append(items, notation)
		rest = next
	}
	return items, nil
}
