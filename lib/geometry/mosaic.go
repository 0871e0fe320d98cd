// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package geometry

import (
	"fmt"
	"math"
	"strings"
)

// segmentOrder is the order in which segments appear as header
// extensions. It is the same for both vendors.
var segmentOrder = []string{
	"10", "11", "12", "13", "14", "15", "16", "17",
	"07", "06", "05", "04", "03", "02", "01", "00",
}

// channels maps each segment to its amplifier output number.
var channels = map[Vendor]map[string]int{
	E2V: {
		"00": 16, "01": 15, "02": 14, "03": 13, "04": 12, "05": 11, "06": 10, "07": 9,
		"10": 1, "11": 2, "12": 3, "13": 4, "14": 5, "15": 6, "16": 7, "17": 8,
	},
	ITL: {
		"00": 8, "01": 7, "02": 6, "03": 5, "04": 4, "05": 3, "06": 2, "07": 1,
		"10": 9, "11": 10, "12": 11, "13": 12, "14": 13, "15": 14, "16": 15, "17": 16,
	},
}

// SegmentNames returns the sixteen segment codes in extension order.
func SegmentNames() []string {
	return append([]string(nil), segmentOrder...)
}

// Channel returns the amplifier output number of segment code.
func Channel(vendor Vendor, code string) (int, bool) {
	channel, ok := channels[vendor][code]
	return channel, ok
}

// Mosaic returns DETSEC and the detector transform (DTM/DTV) placing
// segment (sx, sy) within the assembled CCD.
func (g SensorGeometry) Mosaic(sx, sy int) []KeyValue {
	dimh, dimv, preh := g.scan.DimH, g.scan.DimV, g.scan.PreH
	dsy1 := 2*dimv*(1-sx) + sx
	dsy2 := (dimv+1)*(1-sx) + dimv*sx
	dtv2 := (2*dimv + 1) * (1 - sx)

	var dsx1, dsx2, dtv1 int
	var dtm11 float64
	switch g.vendor {
	case E2V:
		dsx1 = (sy*dimh+1)*(1-sx) + (sy+1)*dimh*sx
		dsx2 = (sy+1)*dimh*(1-sx) + (sy*dimh+1)*sx
		dtm11 = 1 - 2*float64(sx)
		dtv1 = (dimh+1+2*preh)*sx + sy*dimh - preh
	default:
		dsx1 = (sy + 1) * dimh
		dsx2 = sy*dimh + 1
		dtm11 = -1
		dtv1 = dimh + 1 + sy*dimh + preh
	}

	return []KeyValue{
		{"DETSEC", fmt.Sprintf("[%d:%d,%d:%d]", dsx1, dsx2, dsy1, dsy2)},
		{"DTM1_1", dtm11},
		{"DTM1_2", 0.0},
		{"DTM2_1", 0.0},
		{"DTM2_2", 2*float64(sx) - 1},
		{"DTV1", int64(dtv1)},
		{"DTV2", int64(dtv2)},
	}
}

// AmplifierWCS returns the alternate "Q" WCS mapping segment pixel
// coordinates to CCD pixel coordinates.
func (g SensorGeometry) AmplifierWCS(sx, sy int) []KeyValue {
	dimh, dimv, preh := g.scan.DimH, g.scan.DimV, g.scan.PreH
	fx, fy := float64(sx), float64(sy)

	pc12 := 1 - 2*fx
	pc21 := 1 - 2*fx
	crval1 := fx * float64(2*dimv+1)
	crval2 := fx*float64(dimh+1) + fy*float64(dimh) + (2*fx-1)*float64(preh)
	if g.vendor == ITL {
		pc21 = -1
		crval2 = float64(dimh+1) + fy*float64(dimh) - float64(preh)
	}

	return []KeyValue{
		{"PC1_1Q", 0.0},
		{"PC1_2Q", pc12},
		{"PC2_1Q", pc21},
		{"PC2_2Q", 0.0},
		{"CDELT1Q", 1.0},
		{"CDELT2Q", 1.0},
		{"CRPIX1Q", 0.0},
		{"CRPIX2Q", 0.0},
		{"CRVAL1Q", crval1},
		{"CRVAL2Q", crval2},
	}
}

// Pointing is the sky position of the boresight.
type Pointing struct {
	RA       float64 // degrees
	Dec      float64 // degrees
	Rotation float64 // degrees, position angle of the sky on the detector
	Frame    string  // ICRS, FK5, ...
}

// TangentPlane returns the gnomonic (TAN) projection records for
// pointing at the sensor's pixel scale.
func (g SensorGeometry) TangentPlane(pointing Pointing) []KeyValue {
	cdelt := g.pixelScale / 3600
	theta := pointing.Rotation * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	frame := strings.ToUpper(pointing.Frame)
	if frame == "" {
		frame = "ICRS"
	}

	records := []KeyValue{
		{"CTYPE1", "RA---TAN"},
		{"CTYPE2", "DEC--TAN"},
		{"CUNIT1", "deg"},
		{"CUNIT2", "deg"},
		{"CRVAL1", pointing.RA},
		{"CRVAL2", pointing.Dec},
		{"CROTA2", pointing.Rotation},
		{"CDELT1", cdelt},
		{"CDELT2", cdelt},
		{"CD1_1", cdelt * cos},
		{"CD1_2", -cdelt * sin},
		{"CD2_1", cdelt * sin},
		{"CD2_2", cdelt * cos},
		{"RADESYS", frame},
	}
	if frame == "FK5" {
		records = append(records, KeyValue{"EQUINOX", 2000.0})
	}
	return records
}
