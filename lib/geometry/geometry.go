// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package geometry computes the per-segment header records of a CCD
// from its vendor scan geometry: detector and data sections, the NOAO
// mosaic transform (DTM/DTV), the amplifier-to-CCD alternate WCS, and
// the tangent-plane sky projection.
//
// Sensors read out through sixteen amplifiers arranged in two rows of
// eight. A segment is named by two digits "XY": X is the row (0 or 1)
// and Y the position within the row (0-7). ITL and E2V devices flip
// the rows differently, so each vendor has its own closed form.
//
// Every function in this package is pure: the same vendor, readout
// parameters, and segment always produce bit-identical records.
package geometry

import (
	"fmt"
	"strings"
)

// Vendor identifies a CCD manufacturer.
type Vendor string

const (
	ITL Vendor = "ITL"
	E2V Vendor = "E2V"
)

// ParseVendor accepts a vendor name case-insensitively.
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToUpper(s) {
	case "ITL":
		return ITL, nil
	case "E2V":
		return E2V, nil
	default:
		return "", fmt.Errorf("unknown sensor vendor %q (want ITL or E2V)", s)
	}
}

// ScanGeometry holds the pixel counts of one segment: the imaging area
// (DimH x DimV), the horizontal prescan, and the horizontal and vertical
// overscan.
type ScanGeometry struct {
	DimH  int
	DimV  int
	PreH  int
	OverH int
	OverV int
}

// scanDefaults are the factory readout layouts of each vendor.
var scanDefaults = map[Vendor]ScanGeometry{
	ITL: {DimH: 509, DimV: 2000, PreH: 3, OverH: 32, OverV: 48},
	E2V: {DimH: 512, DimV: 2002, PreH: 10, OverH: 54, OverV: 46},
}

// DefaultScan returns the factory layout of vendor.
func DefaultScan(vendor Vendor) (ScanGeometry, bool) {
	scan, ok := scanDefaults[vendor]
	return scan, ok
}

// DefaultPixelScale is the plate scale in arcseconds per pixel.
const DefaultPixelScale = 0.105

// ReadoutParameters are the values the camera publishes before each
// readout. A zero field keeps the vendor default.
type ReadoutParameters struct {
	PreCols  int `json:"preCols"`
	OverCols int `json:"overCols"`
	OverRows int `json:"overRows"`
	ReadCols int `json:"readCols"`
	ReadRows int `json:"readRows"`
}

// KeyValue is one computed header record.
type KeyValue struct {
	Keyword string
	Value   any
}

// SensorGeometry is the immutable geometry of one sensor. Build it with
// New.
type SensorGeometry struct {
	vendor     Vendor
	scan       ScanGeometry
	pixelScale float64
}

// New builds the geometry for vendor, overriding the factory layout with
// every non-zero readout parameter.
func New(vendor Vendor, readout ReadoutParameters) (SensorGeometry, error) {
	scan, ok := scanDefaults[vendor]
	if !ok {
		return SensorGeometry{}, fmt.Errorf("unknown sensor vendor %q", vendor)
	}
	override := func(target *int, value int, name string) error {
		if value < 0 {
			return fmt.Errorf("readout parameter %s is negative (%d)", name, value)
		}
		if value > 0 {
			*target = value
		}
		return nil
	}
	if err := override(&scan.PreH, readout.PreCols, "preCols"); err != nil {
		return SensorGeometry{}, err
	}
	if err := override(&scan.OverH, readout.OverCols, "overCols"); err != nil {
		return SensorGeometry{}, err
	}
	if err := override(&scan.OverV, readout.OverRows, "overRows"); err != nil {
		return SensorGeometry{}, err
	}
	if err := override(&scan.DimH, readout.ReadCols, "readCols"); err != nil {
		return SensorGeometry{}, err
	}
	if err := override(&scan.DimV, readout.ReadRows, "readRows"); err != nil {
		return SensorGeometry{}, err
	}
	return SensorGeometry{vendor: vendor, scan: scan, pixelScale: DefaultPixelScale}, nil
}

// MustNew is New for vendors known at compile time.
func MustNew(vendor Vendor) SensorGeometry {
	geometry, err := New(vendor, ReadoutParameters{})
	if err != nil {
		panic(err)
	}
	return geometry
}

// WithPixelScale returns a copy using scale arcseconds per pixel.
func (g SensorGeometry) WithPixelScale(scale float64) SensorGeometry {
	if scale > 0 {
		g.pixelScale = scale
	}
	return g
}

func (g SensorGeometry) Vendor() Vendor     { return g.vendor }
func (g SensorGeometry) Scan() ScanGeometry { return g.scan }

// NAXIS returns the raw segment dimensions including scan regions.
func (g SensorGeometry) NAXIS() (naxis1, naxis2 int) {
	return g.scan.PreH + g.scan.DimH + g.scan.OverH, g.scan.DimV + g.scan.OverV
}

func (g SensorGeometry) detsize() string {
	return fmt.Sprintf("[1:%d,1:%d]", 8*g.scan.DimH, 2*g.scan.DimV)
}

func (g SensorGeometry) datasec() string {
	return fmt.Sprintf("[%d:%d,1:%d]", g.scan.PreH+1, g.scan.PreH+g.scan.DimH, g.scan.DimV)
}

func (g SensorGeometry) biassec() string {
	start := g.scan.PreH + g.scan.DimH + 1
	return fmt.Sprintf("[%d:%d,1:%d]", start, start+g.scan.OverH-1, g.scan.DimV)
}

// Primary returns the sensor-level records.
func (g SensorGeometry) Primary() []KeyValue {
	return []KeyValue{
		{"DETSIZE", g.detsize()},
		{"CCD_MANU", string(g.vendor)},
		{"DATASEC", g.datasec()},
	}
}

// Segment returns the records of the segment named code ("10".."17",
// "00".."07").
func (g SensorGeometry) Segment(code string) ([]KeyValue, error) {
	sx, sy, err := ParseSegment(code)
	if err != nil {
		return nil, err
	}
	records := []KeyValue{
		{"DETSIZE", g.detsize()},
		{"DATASEC", g.datasec()},
		{"BIASSEC", g.biassec()},
		{"CHANNEL", int64(channels[g.vendor][code])},
	}
	records = append(records, g.Mosaic(sx, sy)...)
	records = append(records, g.AmplifierWCS(sx, sy)...)
	return records, nil
}

// ParseSegment splits a segment code into its row and column.
func ParseSegment(code string) (sx, sy int, err error) {
	if len(code) != 2 || (code[0] != '0' && code[0] != '1') || code[1] < '0' || code[1] > '7' {
		return 0, 0, fmt.Errorf("invalid segment code %q", code)
	}
	return int(code[0] - '0'), int(code[1] - '0'), nil
}
