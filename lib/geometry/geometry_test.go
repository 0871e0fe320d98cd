// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"fmt"
	"math"
	"reflect"
	"testing"
)

func recordMap(records []KeyValue) map[string]any {
	values := make(map[string]any, len(records))
	for _, record := range records {
		values[record.Keyword] = record.Value
	}
	return values
}

func TestSegmentRecords(t *testing.T) {
	tests := []struct {
		name   string
		vendor Vendor
		code   string
		want   map[string]any
	}{
		{
			name:   "E2V upper row first amplifier",
			vendor: E2V,
			code:   "10",
			want: map[string]any{
				"DETSEC":  "[512:1,1:2002]",
				"DTM1_1":  -1.0,
				"DTM2_2":  1.0,
				"DTV1":    int64(523),
				"DTV2":    int64(0),
				"CHANNEL": int64(1),
				"DETSIZE": "[1:4096,1:4004]",
				"DATASEC": "[11:522,1:2002]",
			},
		},
		{
			name:   "E2V lower row first amplifier",
			vendor: E2V,
			code:   "00",
			want: map[string]any{
				"DETSEC":  "[1:512,4004:2003]",
				"DTM1_1":  1.0,
				"DTM2_2":  -1.0,
				"DTV1":    int64(-10),
				"DTV2":    int64(4005),
				"CHANNEL": int64(16),
			},
		},
		{
			name:   "ITL lower row last amplifier",
			vendor: ITL,
			code:   "07",
			want: map[string]any{
				"DETSEC":  "[4072:3564,4000:2001]",
				"DTM1_1":  -1.0,
				"DTM2_2":  -1.0,
				"DTV1":    int64(4076),
				"DTV2":    int64(4001),
				"CHANNEL": int64(1),
				"DETSIZE": "[1:4072,1:4000]",
				"DATASEC": "[4:512,1:2000]",
				"BIASSEC": "[513:544,1:2000]",
				"PC2_1Q":  -1.0,
				"CRVAL2Q": float64(509 + 1 + 7*509 - 3),
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			records, err := MustNew(test.vendor).Segment(test.code)
			if err != nil {
				t.Fatalf("Segment(%q): %v", test.code, err)
			}
			got := recordMap(records)
			for keyword, want := range test.want {
				if got[keyword] != want {
					t.Errorf("%s = %#v, want %#v", keyword, got[keyword], want)
				}
			}
		})
	}
}

func TestSegmentDeterministic(t *testing.T) {
	for _, vendor := range []Vendor{ITL, E2V} {
		geometry := MustNew(vendor)
		for _, code := range SegmentNames() {
			first, err := geometry.Segment(code)
			if err != nil {
				t.Fatalf("%s %s: %v", vendor, code, err)
			}
			second, _ := geometry.Segment(code)
			if !reflect.DeepEqual(first, second) {
				t.Errorf("%s %s: repeated calls differ", vendor, code)
			}
		}
	}
}

func TestSegmentsTileDetector(t *testing.T) {
	// Every pixel column of the assembled CCD is covered by exactly one
	// segment in each row.
	for _, vendor := range []Vendor{ITL, E2V} {
		geometry := MustNew(vendor)
		dimh := geometry.Scan().DimH
		for sx := 0; sx <= 1; sx++ {
			covered := make([]int, 8*dimh+1)
			for sy := 0; sy < 8; sy++ {
				var x1, x2, y1, y2 int
				detsec := recordMap(geometry.Mosaic(sx, sy))["DETSEC"].(string)
				if _, err := fmt.Sscanf(detsec, "[%d:%d,%d:%d]", &x1, &x2, &y1, &y2); err != nil {
					t.Fatalf("parse %q: %v", detsec, err)
				}
				low, high := min(x1, x2), max(x1, x2)
				if high-low+1 != dimh {
					t.Errorf("%s (%d,%d): DETSEC width %d, want %d", vendor, sx, sy, high-low+1, dimh)
				}
				for x := low; x <= high; x++ {
					covered[x]++
				}
			}
			for x := 1; x < len(covered); x++ {
				if covered[x] != 1 {
					t.Fatalf("%s row %d: column %d covered %d times", vendor, sx, x, covered[x])
				}
			}
		}
	}
}

func TestNewAppliesReadoutParameters(t *testing.T) {
	geometry, err := New(ITL, ReadoutParameters{PreCols: 5, OverCols: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := recordMap(geometry.Primary())["DATASEC"]; got != "[6:514,1:2000]" {
		t.Errorf("DATASEC = %v", got)
	}
	naxis1, naxis2 := geometry.NAXIS()
	if naxis1 != 578 || naxis2 != 2048 {
		t.Errorf("NAXIS = %d x %d, want 578 x 2048", naxis1, naxis2)
	}

	if _, err := New(ITL, ReadoutParameters{OverRows: -1}); err == nil {
		t.Error("negative readout parameter should fail")
	}
	if _, err := New("DECAM", ReadoutParameters{}); err == nil {
		t.Error("unknown vendor should fail")
	}
}

func TestParseSegment(t *testing.T) {
	sx, sy, err := ParseSegment("16")
	if err != nil || sx != 1 || sy != 6 {
		t.Errorf("ParseSegment(16) = %d, %d, %v", sx, sy, err)
	}
	for _, bad := range []string{"", "1", "20", "18", "ab", "100"} {
		if _, _, err := ParseSegment(bad); err == nil {
			t.Errorf("ParseSegment(%q) should fail", bad)
		}
	}
}

func TestChannelTablesArePermutations(t *testing.T) {
	for _, vendor := range []Vendor{ITL, E2V} {
		seen := make(map[int]bool)
		for _, code := range SegmentNames() {
			channel, ok := Channel(vendor, code)
			if !ok {
				t.Fatalf("%s: no channel for %s", vendor, code)
			}
			if channel < 1 || channel > 16 || seen[channel] {
				t.Errorf("%s: channel %d for %s is out of range or repeated", vendor, channel, code)
			}
			seen[channel] = true
		}
	}
}

func TestTangentPlane(t *testing.T) {
	geometry := MustNew(ITL)
	records := recordMap(geometry.TangentPlane(Pointing{RA: 202.473, Dec: 47.1967, Rotation: 90, Frame: "fk5"}))

	cdelt := DefaultPixelScale / 3600
	if records["CDELT1"] != cdelt {
		t.Errorf("CDELT1 = %v, want %v", records["CDELT1"], cdelt)
	}
	closeTo := func(keyword string, want float64) {
		t.Helper()
		got, ok := records[keyword].(float64)
		if !ok || math.Abs(got-want) > 1e-15 {
			t.Errorf("%s = %v, want %v", keyword, records[keyword], want)
		}
	}
	closeTo("CD1_1", 0)
	closeTo("CD1_2", -cdelt)
	closeTo("CD2_1", cdelt)
	closeTo("CD2_2", 0)
	if records["RADESYS"] != "FK5" || records["EQUINOX"] != 2000.0 {
		t.Errorf("frame records = %v, %v", records["RADESYS"], records["EQUINOX"])
	}

	icrs := recordMap(geometry.TangentPlane(Pointing{RA: 10, Dec: -30}))
	if icrs["RADESYS"] != "ICRS" {
		t.Errorf("default frame = %v, want ICRS", icrs["RADESYS"])
	}
	if _, present := icrs["EQUINOX"]; present {
		t.Error("EQUINOX should only accompany FK5")
	}
}
