// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bureau-foundation/headerservice/lib/geometry"
)

// sampleDocument exercises every value type and the card-format edge
// cases: long strings with quotes, HIERARCH keywords, long comments.
func sampleDocument(t *testing.T) *Document {
	t.Helper()
	primary, err := NewExtension(PrimaryName, []Record{
		{Keyword: "OBSID", Value: "AT_O_20240101_000001", Comment: "ImageName from Camera StartIntegration"},
		{Keyword: "EXPTIME", Value: 15.0, Comment: "Exposure time in seconds"},
		{Keyword: "SEQNUM", Value: int64(1)},
		{Keyword: "MINIMUM", Value: int64(math.MinInt64)},
		{Keyword: "THIRD", Value: 1.0 / 3.0, Comment: "full precision"},
		{Keyword: "SUM", Value: 0.1 + 0.2},
		{Keyword: "HUGE", Value: 1e21},
		{Keyword: "TINY", Value: 5e-324},
		{Keyword: "NEGATIVE", Value: -2.5e-7},
		{Keyword: "SHUTTER", Value: true, Comment: "Shutter opened"},
		{Keyword: "DOME", Value: false},
		{Keyword: "FILTER", Value: nil, Comment: "Name of the filter"},
		{Keyword: "QUOTED", Value: "O'Brien's filter", Comment: "it's quoted"},
		{Keyword: "EMPTY", Value: ""},
		{Keyword: "PADDED", Value: "  leading and trailing  "},
		{Keyword: "AMPERS", Value: "ends with &"},
		{Keyword: "LONGSTR", Value: strings.Repeat("0123456789'", 20), Comment: "long string with quotes"},
		{Keyword: "LONGCOM", Value: "short", Comment: strings.Repeat("c", 64)},
		{Keyword: "ESS.TEMPERATURE.MEAN", Value: -101.25, Comment: "hierarch keyword"},
		{Keyword: "lowercase", Value: int64(7)},
	})
	if err != nil {
		t.Fatalf("NewExtension: %v", err)
	}
	segment, err := NewExtension("Segment10", []Record{
		{Keyword: "DETSEC", Value: "[512:1,1:2002]", Comment: "Segment position within the sensor"},
		{Keyword: "DTV1", Value: int64(523)},
		{Keyword: "DTM1_1", Value: -1.0},
	})
	if err != nil {
		t.Fatalf("NewExtension: %v", err)
	}
	empty, err := NewExtension("Empty", nil)
	if err != nil {
		t.Fatalf("NewExtension: %v", err)
	}

	doc := NewDocument()
	for _, extension := range []*Extension{primary, segment, empty} {
		if err := doc.Append(extension); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return doc
}

func requireSameDocument(t *testing.T, got, want *Document) {
	t.Helper()
	if strings.Join(got.Names(), ",") != strings.Join(want.Names(), ",") {
		t.Fatalf("extensions = %v, want %v", got.Names(), want.Names())
	}
	for _, wantExtension := range want.Extensions() {
		gotExtension, _ := got.Extension(wantExtension.Name())
		gotRecords, wantRecords := gotExtension.Records(), wantExtension.Records()
		if len(gotRecords) != len(wantRecords) {
			t.Fatalf("%s: %d records, want %d", wantExtension.Name(), len(gotRecords), len(wantRecords))
		}
		for i := range wantRecords {
			if gotRecords[i] != wantRecords[i] {
				t.Errorf("%s record %d = %#v, want %#v", wantExtension.Name(), i, gotRecords[i], wantRecords[i])
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatFITS, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			original := sampleDocument(t)
			data, err := Encode(original, format)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			requireSameDocument(t, decoded, original)

			again, err := Encode(decoded, format)
			if err != nil {
				t.Fatalf("re-Encode: %v", err)
			}
			if string(again) != string(data) {
				t.Error("encoding is not stable across a round trip")
			}
		})
	}
}

func TestRoundTripInstantiatedDocument(t *testing.T) {
	sensors := []Sensor{{Name: "R22_S00", Vendor: geometry.E2V}, {Name: "R22_S01", Vendor: geometry.ITL}}
	doc, err := mustTemplates(t, "lsstcam").Instantiate(sensors)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	doc.UpdateRecord("DATE-OBS", "2024-01-01T00:00:15.123", PrimaryName)
	doc.UpdateRecord("MJD-OBS", 60310.000175, PrimaryName)
	for _, format := range []Format{FormatFITS, FormatYAML} {
		data, err := Encode(doc, format)
		if err != nil {
			t.Fatalf("Encode(%s): %v", format, err)
		}
		decoded, err := Decode(data, format)
		if err != nil {
			t.Fatalf("Decode(%s): %v", format, err)
		}
		requireSameDocument(t, decoded, doc)
	}
}

func TestFITSLayout(t *testing.T) {
	data, err := Encode(sampleDocument(t), FormatFITS)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data)%blockLength != 0 {
		t.Fatalf("length %d is not a multiple of %d", len(data), blockLength)
	}
	if !strings.HasPrefix(string(data), "SIMPLE  =                    T") {
		t.Errorf("first card = %q", data[:cardLength])
	}
	if DetectFormat(data) != FormatFITS {
		t.Error("DetectFormat did not recognize FITS")
	}

	cards := make([]string, 0, len(data)/cardLength)
	for offset := 0; offset < len(data); offset += cardLength {
		cards = append(cards, string(data[offset:offset+cardLength]))
	}
	find := func(prefix string) string {
		for _, text := range cards {
			if strings.HasPrefix(text, prefix) {
				return text
			}
		}
		t.Fatalf("no card starting with %q", prefix)
		return ""
	}
	if got := strings.TrimRight(find("EXPTIME"), " "); got != "EXPTIME =                 15.0 / Exposure time in seconds" {
		t.Errorf("EXPTIME card = %q", got)
	}
	if got := strings.TrimRight(find("HUGE"), " "); got != "HUGE    =              1.0E+21" {
		t.Errorf("HUGE card = %q", got)
	}
	find("HIERARCH ESS.TEMPERATURE.MEAN = -101.25 / hierarch keyword")
	find("HIERARCH lowercase = 7")
	find("CONTINUE  '")
	find("XTENSION= 'IMAGE   '")
	find("EXTNAME = 'Segment10'")
}

func TestFITSRejectsUnencodableValues(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   error
	}{
		{"NaN", Record{Keyword: "BAD", Value: math.NaN()}, ErrUnencodableValue},
		{"infinity", Record{Keyword: "BAD", Value: math.Inf(1)}, ErrUnencodableValue},
		{"non-ASCII string", Record{Keyword: "BAD", Value: "température"}, ErrUnencodableValue},
		{"equals in keyword", Record{Keyword: "A=B", Value: int64(1)}, ErrUnencodableValue},
		{"comment too long", Record{Keyword: "NUMBER", Value: 1.5, Comment: strings.Repeat("x", 60)}, ErrRecordTooLong},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			extension, err := NewExtension(PrimaryName, []Record{test.record})
			if err != nil {
				t.Fatalf("NewExtension: %v", err)
			}
			doc := NewDocument()
			doc.Append(extension)
			if _, err := Encode(doc, FormatFITS); !errors.Is(err, test.want) {
				t.Errorf("Encode error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestYAMLKeepsSpecialFloats(t *testing.T) {
	extension, _ := NewExtension(PrimaryName, []Record{
		{Keyword: "NAN", Value: math.NaN()},
		{Keyword: "INF", Value: math.Inf(-1)},
		{Keyword: "WHOLE", Value: 2.0},
		{Keyword: "NUMERIC", Value: "123"},
		{Keyword: "BOOLISH", Value: "true"},
	})
	doc := NewDocument()
	doc.Append(extension)
	data, err := Encode(doc, FormatYAML)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data, FormatYAML)
	if err != nil {
		t.Fatalf("Decode: %v\n%s", err, data)
	}
	if value, _ := decoded.Value("NAN", PrimaryName); !math.IsNaN(value.(float64)) {
		t.Errorf("NAN = %v", value)
	}
	if value, _ := decoded.Value("INF", PrimaryName); !math.IsInf(value.(float64), -1) {
		t.Errorf("INF = %v", value)
	}
	if value, _ := decoded.Value("WHOLE", PrimaryName); value != 2.0 {
		t.Errorf("WHOLE = %#v, want float64 2", value)
	}
	if value, _ := decoded.Value("NUMERIC", PrimaryName); value != "123" {
		t.Errorf("NUMERIC = %#v, want string", value)
	}
	if value, _ := decoded.Value("BOOLISH", PrimaryName); value != "true" {
		t.Errorf("BOOLISH = %#v, want string", value)
	}
}

func TestDecodeSkipsDataUnits(t *testing.T) {
	cards := []string{
		"SIMPLE  =                    T",
		"BITPIX  =                   16",
		"NAXIS   =                    2",
		"NAXIS1  =                   10",
		"NAXIS2  =                  200",
		"OBJECT  = 'flat'",
		"COMMENT this card has no value",
		"END",
	}
	var builder strings.Builder
	for _, text := range cards {
		builder.WriteString(text + strings.Repeat(" ", cardLength-len(text)))
	}
	header := builder.String() + strings.Repeat(" ", blockLength-builder.Len())
	// 10*200*2 = 4000 bytes of data, padded to two blocks.
	data := header + strings.Repeat("\x00", 2*blockLength)

	extension := []string{
		"XTENSION= 'IMAGE   '",
		"BITPIX  =                    8",
		"NAXIS   =                    0",
		"PCOUNT  =                    0",
		"GCOUNT  =                    1",
		"EXTNAME = 'AMP01'",
		"GAIN    =                  1.5",
		"END",
	}
	builder.Reset()
	for _, text := range extension {
		builder.WriteString(text + strings.Repeat(" ", cardLength-len(text)))
	}
	data += builder.String() + strings.Repeat(" ", blockLength-builder.Len())

	doc, err := Decode([]byte(data), FormatFITS)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if names := doc.Names(); len(names) != 2 || names[1] != "AMP01" {
		t.Fatalf("extensions = %v", names)
	}
	if value, _ := doc.Value("OBJECT", PrimaryName); value != "flat" {
		t.Errorf("OBJECT = %#v", value)
	}
	if value, _ := doc.Value("GAIN", "AMP01"); value != 1.5 {
		t.Errorf("GAIN = %#v", value)
	}
	if primary, _ := doc.Extension(PrimaryName); primary.Len() != 1 {
		t.Errorf("primary has %d records, want 1 (structural and commentary cards dropped)", primary.Len())
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"empty":            "",
		"odd length":       "SIMPLE  =                    T",
		"not simple":       "FOO     =                    1" + strings.Repeat(" ", 50),
		"no END":           "SIMPLE  =                    T" + strings.Repeat(" ", 50),
		"unterminated":     "SIMPLE  =                    T" + strings.Repeat(" ", 50) + "A       = 'abc" + strings.Repeat(" ", 66),
		"negative axis":    fitsCards("SIMPLE  =                    T", "BITPIX  =                    8", "NAXIS   =                    1", "NAXIS1  =              -100000", "END"),
		"overflowing axes": fitsCards("SIMPLE  =                    T", "BITPIX  =                   64", "NAXIS   =                    2", "NAXIS1  =  9000000000000000000", "NAXIS2  =  9000000000000000000", "END"),
		"negative gcount":  fitsCards("SIMPLE  =                    T", "BITPIX  =                    8", "NAXIS   =                    1", "NAXIS1  =                   10", "GCOUNT  =                   -1", "END"),
		"bad bitpix":       fitsCards("SIMPLE  =                    T", "BITPIX  =                   12", "NAXIS   =                    1", "NAXIS1  =                   10", "END"),
	} {
		if _, err := Decode([]byte(data), FormatFITS); !errors.Is(err, ErrMalformedHeader) {
			t.Errorf("%s: err = %v, want ErrMalformedHeader", name, err)
		}
	}
	if _, err := Decode([]byte("- just\n- a list\n"), FormatYAML); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("yaml list: err = %v", err)
	}
}

// fitsCards pads each card to 80 characters and the header to a whole
// 2880-byte block.
func fitsCards(cards ...string) string {
	var builder strings.Builder
	for _, card := range cards {
		builder.WriteString(card + strings.Repeat(" ", cardLength-len(card)))
	}
	if remainder := builder.Len() % blockLength; remainder != 0 {
		builder.WriteString(strings.Repeat(" ", blockLength-remainder))
	}
	return builder.String()
}

func TestEncodeEmptyDocument(t *testing.T) {
	if _, err := Encode(NewDocument(), FormatFITS); err == nil {
		t.Error("Encode of empty document should fail")
	}
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{"fits": FormatFITS, "FITS": FormatFITS, "yaml": FormatYAML, "yml": FormatYAML} {
		if got, err := ParseFormat(input); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := ParseFormat("json"); err == nil {
		t.Error("ParseFormat(json) should fail")
	}
	if FormatYAML.MimeType() != "YAML" {
		t.Errorf("MimeType = %q", FormatYAML.MimeType())
	}
}
