// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/headerservice/lib/geometry"
)

func mustTemplates(t *testing.T, name string) *TemplateSet {
	t.Helper()
	templates, err := DefaultTemplates(name)
	if err != nil {
		t.Fatalf("DefaultTemplates(%s): %v", name, err)
	}
	return templates
}

func TestInstantiateSingleSensor(t *testing.T) {
	doc, err := mustTemplates(t, "atscam").Instantiate([]Sensor{{Name: "R00_S00", Vendor: geometry.ITL}})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	names := doc.Names()
	if len(names) != 17 {
		t.Fatalf("got %d extensions, want 17: %v", len(names), names)
	}
	if names[0] != PrimaryName || names[1] != "Segment10" || names[16] != "Segment00" {
		t.Errorf("extension order = %v", names)
	}

	if value, _ := doc.Value("CCD_MANU", PrimaryName); value != "ITL" {
		t.Errorf("CCD_MANU = %#v, want ITL", value)
	}
	if value, _ := doc.Value("DETSIZE", PrimaryName); value != "[1:4072,1:4000]" {
		t.Errorf("DETSIZE = %#v", value)
	}
	if value, _ := doc.Value("CHANNEL", "Segment07"); value != int64(1) {
		t.Errorf("Segment07 CHANNEL = %#v, want 1", value)
	}
}

func TestInstantiateMultiSensor(t *testing.T) {
	sensors := []Sensor{
		{Name: "R22_S00", Vendor: geometry.E2V},
		{Name: "R22_S01", Vendor: geometry.ITL},
	}
	doc, err := mustTemplates(t, "lsstcam").Instantiate(sensors)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	names := doc.Names()
	if len(names) != 1+2+32 {
		t.Fatalf("got %d extensions, want 35", len(names))
	}
	want := []string{PrimaryName, "R22_S00_PRIMARY", "R22_S01_PRIMARY", "R22_S00_Segment10"}
	if !slices.Equal(names[:4], want) {
		t.Errorf("first extensions = %v, want %v", names[:4], want)
	}
	if names[len(names)-1] != "R22_S01_Segment00" {
		t.Errorf("last extension = %s", names[len(names)-1])
	}
	if value, _ := doc.Value("CCD_MANU", "R22_S00_PRIMARY"); value != "E2V" {
		t.Errorf("R22_S00 CCD_MANU = %#v", value)
	}
	if value, _ := doc.Value("CCD_MANU", "R22_S01_PRIMARY"); value != "ITL" {
		t.Errorf("R22_S01 CCD_MANU = %#v", value)
	}

	extensions := doc.SensorExtensions("R22_S01")
	if len(extensions) != 17 || extensions[0] != "R22_S01_PRIMARY" {
		t.Errorf("SensorExtensions = %v", extensions)
	}
	if doc.SensorExtensions("R99_S99") != nil {
		t.Error("unknown sensor should have no extensions")
	}
}

func TestInstantiateIsDeepCopy(t *testing.T) {
	templates := mustTemplates(t, "atscam")
	sensors := []Sensor{{Name: "R00_S00", Vendor: geometry.ITL}}
	first, err := templates.Instantiate(sensors)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	second, _ := templates.Instantiate(sensors)

	first.UpdateRecord("EXPTIME", 15.0, PrimaryName)
	first.UpdateRecord("DTV1", int64(-1), "Segment10")
	if value, _ := second.Value("EXPTIME", PrimaryName); value != nil {
		t.Errorf("second document EXPTIME = %#v, want nil", value)
	}
	if record, _ := templates.Primary.Get("EXPTIME"); record.Value != nil {
		t.Errorf("template EXPTIME mutated to %#v", record.Value)
	}
	if value, _ := second.Value("DTV1", "Segment10"); value == int64(-1) {
		t.Error("segment extensions share storage")
	}
}

func TestInstantiateRejectsBadSensors(t *testing.T) {
	templates := mustTemplates(t, "atscam")
	cases := [][]Sensor{
		nil,
		{{Name: "", Vendor: geometry.ITL}},
		{{Name: "A", Vendor: geometry.ITL}, {Name: "A", Vendor: geometry.E2V}},
		{{Name: "A", Vendor: "DECAM"}},
	}
	for _, sensors := range cases {
		if _, err := templates.Instantiate(sensors); err == nil {
			t.Errorf("Instantiate(%v) should fail", sensors)
		}
	}
}

func TestUpdateRecordUnknownKeywordIsNoOp(t *testing.T) {
	doc, err := mustTemplates(t, "atscam").Instantiate([]Sensor{{Name: "R00_S00", Vendor: geometry.E2V}})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	before, err := Encode(doc, FormatYAML)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if doc.UpdateRecord("NOTAKEY", 1.0, PrimaryName) {
		t.Error("UpdateRecord reported success for unknown keyword")
	}
	if doc.UpdateRecord("EXPTIME", 1.0, "NOSUCHEXT") {
		t.Error("UpdateRecord reported success for unknown extension")
	}
	if doc.UpdateRecord("EXPTIME", []float64{1}, PrimaryName) {
		t.Error("UpdateRecord accepted a slice value")
	}
	if doc.UpdateRecord("EXPTIME", uint64(math.MaxUint64), PrimaryName) {
		t.Error("UpdateRecord accepted a uint64 beyond int64")
	}
	if doc.UpdateRecord("EXPTIME", uint64(math.MaxInt64)+1, PrimaryName) {
		t.Error("UpdateRecord accepted 2^63")
	}

	after, _ := Encode(doc, FormatYAML)
	if string(before) != string(after) {
		t.Error("document changed after no-op updates")
	}

	if !doc.UpdateRecord("EXPTIME", float32(2.5), PrimaryName) {
		t.Fatal("UpdateRecord(EXPTIME) failed")
	}
	if value, _ := doc.Value("EXPTIME", PrimaryName); value != 2.5 {
		t.Errorf("EXPTIME = %#v, want float64 2.5", value)
	}
}

func TestLoadGeometryIsIdempotent(t *testing.T) {
	doc, err := mustTemplates(t, "atscam").Instantiate([]Sensor{{Name: "R00_S00", Vendor: geometry.ITL}})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	readout, err := geometry.New(geometry.ITL, geometry.ReadoutParameters{PreCols: 5, OverCols: 64})
	if err != nil {
		t.Fatalf("geometry.New: %v", err)
	}
	geometries := map[string]geometry.SensorGeometry{"R00_S00": readout}

	if err := doc.LoadGeometry(geometries); err != nil {
		t.Fatalf("LoadGeometry: %v", err)
	}
	once, _ := Encode(doc, FormatFITS)
	if err := doc.LoadGeometry(geometries); err != nil {
		t.Fatalf("LoadGeometry again: %v", err)
	}
	twice, _ := Encode(doc, FormatFITS)
	if string(once) != string(twice) {
		t.Error("second LoadGeometry changed the document")
	}
	if value, _ := doc.Value("DATASEC", "Segment12"); value != "[6:514,1:2000]" {
		t.Errorf("DATASEC = %#v", value)
	}

	err = doc.LoadGeometry(map[string]geometry.SensorGeometry{"R99_S99": readout})
	if !errors.Is(err, ErrUnknownExtension) {
		t.Errorf("LoadGeometry(unknown sensor) = %v, want ErrUnknownExtension", err)
	}
}

func TestParseTemplatesRejectsStructuralKeywords(t *testing.T) {
	for _, keyword := range []string{"SIMPLE", "NAXIS", "NAXIS2", "EXTNAME", "CONTINUE"} {
		data := "PRIMARY:\n  - {keyword: " + keyword + ", value: 1, comment: x}\nSEGMENT: []\n"
		if _, err := ParseTemplates([]byte(data)); err == nil {
			t.Errorf("template with %s accepted", keyword)
		}
	}
	if _, err := ParseTemplates([]byte("PRIMARY:\n  - {keyword: NAXISX, value: 1}\nSEGMENT: []\n")); err != nil {
		t.Errorf("NAXISX is not structural: %v", err)
	}
	if _, err := ParseTemplates([]byte("PRIMARY: []\n")); err == nil || !strings.Contains(err.Error(), "SEGMENT") {
		t.Errorf("missing SEGMENT: %v", err)
	}
	if _, err := ParseTemplates([]byte("PRIMARY: []\nSEGMENT: []\nOTHER: []\n")); err == nil {
		t.Error("unexpected template extension accepted")
	}
}

func TestClone(t *testing.T) {
	doc, err := mustTemplates(t, "atscam").Instantiate([]Sensor{{Name: "R00_S00", Vendor: geometry.ITL}})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	copied := doc.Clone()
	copied.UpdateRecord("OBSID", "AT_O_20240101_000001", PrimaryName)
	if value, _ := doc.Value("OBSID", PrimaryName); value != nil {
		t.Errorf("original OBSID = %#v", value)
	}
	if !reflect.DeepEqual(doc.Names(), copied.Names()) {
		t.Error("clone has different extensions")
	}
}
