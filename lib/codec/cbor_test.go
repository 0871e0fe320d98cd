// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// fileAvailable mirrors the shape of an announce.Notification without
// importing it (lib/codec sits below lib/announce).
type fileAvailable struct {
	ByteSize int64  `json:"byteSize"`
	CheckSum string `json:"checkSum"`
	URL      string `json:"url"`
	ID       string `json:"id"`
	Version  int    `json:"version"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := fileAvailable{
		ByteSize: 40320,
		CheckSum: "9e107d9d372bb6826bd81d3542a419d6",
		URL:      "http://10.0.0.1:8000/AT_O_20240101_000001.header",
		ID:       "AT_O_20240101_000001",
		Version:  1,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded fileAvailable
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	fields := map[string]any{"imageName": "AT_O_20240101_000001", "exposureTime": 15.0, "priority": 1}

	first, err := Marshal(fields)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(fields)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	notifications := []fileAvailable{
		{ID: "AT_O_20240101_000001", ByteSize: 1, Version: 1},
		{ID: "AT_O_20240101_000002", ByteSize: 2, Version: 1},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, notification := range notifications {
		if err := encoder.Encode(notification); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range notifications {
		var got fileAvailable
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got != want {
			t.Errorf("notification %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestUntypedDecodeNormalizesMapsAndIntegers(t *testing.T) {
	data, err := Marshal(map[string]any{"readRows": 2000, "names": []any{"R00", "R01"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if rows, ok := fields["readRows"].(int64); !ok || rows != 2000 {
		t.Errorf("readRows = %#v, want int64(2000)", fields["readRows"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var notification fileAvailable
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &notification); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestDiagnoseSequence(t *testing.T) {
	var sequence []byte
	for _, id := range []string{"AT_O_20240101_000001", "AT_O_20240101_000002"} {
		item, err := Marshal(fileAvailable{ID: id})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		sequence = append(sequence, item...)
	}

	items, err := DiagnoseSequence(sequence)
	if err != nil {
		t.Fatalf("DiagnoseSequence: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if !strings.Contains(items[0], "AT_O_20240101_000001") || !strings.Contains(items[1], "AT_O_20240101_000002") {
		t.Errorf("items = %q", items)
	}

	// A truncated trailing item reports its position and keeps the
	// items read before it.
	items, err = DiagnoseSequence(sequence[:len(sequence)-3])
	if err == nil || !strings.Contains(err.Error(), "item 1") {
		t.Errorf("error = %v, want one naming item 1", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items before the error, want 1", len(items))
	}
}
