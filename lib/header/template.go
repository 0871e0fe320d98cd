// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/bureau-foundation/headerservice/lib/geometry"
)

//go:embed templates/*.yaml
var templateFiles embed.FS

// Template extension names.
const (
	PrimaryName       = "PRIMARY"
	sensorPrimaryName = "SENSOR_PRIMARY"
	segmentName       = "SEGMENT"
)

// reserved are the structural keywords the FITS encoder writes itself.
// Templates may not define them.
var reserved = map[string]bool{
	"SIMPLE": true, "XTENSION": true, "BITPIX": true, "NAXIS": true,
	"EXTEND": true, "PCOUNT": true, "GCOUNT": true, "EXTNAME": true,
	"END": true, "CONTINUE": true,
}

func isReserved(keyword string) bool {
	if reserved[keyword] {
		return true
	}
	if rest, ok := strings.CutPrefix(keyword, "NAXIS"); ok && rest != "" {
		for _, r := range rest {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// TemplateSet is the immutable schema every document is copied from.
// SensorPrimary is optional; it is used only for multi-sensor
// instruments.
type TemplateSet struct {
	Primary       *Extension
	SensorPrimary *Extension
	Segment       *Extension

	// SegmentPrefix is prepended to segment codes to form extension
	// names ("Segment" gives "Segment10").
	SegmentPrefix string
}

// DefaultTemplates returns the embedded template set with the given
// name ("atscam" or "lsstcam").
func DefaultTemplates(name string) (*TemplateSet, error) {
	data, err := templateFiles.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no embedded template set %q", name)
	}
	return ParseTemplates(data)
}

// LoadTemplates reads a template set from a flat-text YAML file.
func LoadTemplates(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}
	templates, err := ParseTemplates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return templates, nil
}

// ParseTemplates parses the flat-text form of a template set: a YAML
// document with PRIMARY, SEGMENT, and optionally SENSOR_PRIMARY
// extensions.
func ParseTemplates(data []byte) (*TemplateSet, error) {
	document, err := Decode(data, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	templates := &TemplateSet{SegmentPrefix: "Segment"}
	for _, extension := range document.extensions {
		for _, record := range extension.records {
			if isReserved(record.Keyword) {
				return nil, fmt.Errorf("template %s: keyword %s is written by the encoder and may not appear in templates",
					extension.name, record.Keyword)
			}
		}
		switch extension.name {
		case PrimaryName:
			templates.Primary = extension
		case sensorPrimaryName:
			templates.SensorPrimary = extension
		case segmentName:
			templates.Segment = extension
		default:
			return nil, fmt.Errorf("unexpected template extension %q (want %s, %s, or %s)",
				extension.name, PrimaryName, sensorPrimaryName, segmentName)
		}
	}
	if templates.Primary == nil {
		return nil, fmt.Errorf("templates have no %s extension", PrimaryName)
	}
	if templates.Segment == nil {
		return nil, fmt.Errorf("templates have no %s extension", segmentName)
	}
	return templates, nil
}

// Sensor is one CCD of the instrument.
type Sensor struct {
	Name   string
	Vendor geometry.Vendor
}

// Instantiate deep-copies the templates into a new document for
// sensors. Extensions are ordered PRIMARY, then one "{sensor}_PRIMARY"
// per sensor when there is more than one sensor and the set has a
// sensor primary template, then every segment of every sensor. Segment
// extensions are named "{sensor}_{prefix}{code}", or "{prefix}{code}"
// for a single-sensor instrument. Geometry records are seeded from
// each sensor's vendor defaults.
func (t *TemplateSet) Instantiate(sensors []Sensor) (*Document, error) {
	if len(sensors) == 0 {
		return nil, fmt.Errorf("instantiate: no sensors")
	}
	seen := make(map[string]bool, len(sensors))
	defaults := make(map[string]geometry.SensorGeometry, len(sensors))
	for _, sensor := range sensors {
		if sensor.Name == "" {
			return nil, fmt.Errorf("instantiate: sensor with empty name")
		}
		if seen[sensor.Name] {
			return nil, fmt.Errorf("instantiate: duplicate sensor %s", sensor.Name)
		}
		seen[sensor.Name] = true
		sensorGeometry, err := geometry.New(sensor.Vendor, geometry.ReadoutParameters{})
		if err != nil {
			return nil, fmt.Errorf("instantiate sensor %s: %w", sensor.Name, err)
		}
		defaults[sensor.Name] = sensorGeometry
	}

	document := NewDocument()
	document.sensors = append([]Sensor(nil), sensors...)
	if err := document.Append(t.Primary.clone(PrimaryName)); err != nil {
		return nil, err
	}
	if document.multiSensor() && t.SensorPrimary != nil {
		for _, sensor := range sensors {
			if err := document.Append(t.SensorPrimary.clone(sensor.Name + "_" + PrimaryName)); err != nil {
				return nil, err
			}
		}
	}
	for _, sensor := range sensors {
		for _, code := range geometry.SegmentNames() {
			name := document.segmentExtension(sensor.Name, t.SegmentPrefix+code)
			if err := document.Append(t.Segment.clone(name)); err != nil {
				return nil, err
			}
		}
	}
	document.prefix = t.SegmentPrefix

	if err := document.LoadGeometry(defaults); err != nil {
		return nil, err
	}
	return document, nil
}
