// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"fmt"

	"github.com/bureau-foundation/headerservice/lib/geometry"
)

func (d *Document) multiSensor() bool { return len(d.sensors) > 1 }

func (d *Document) segmentExtension(sensor, segment string) string {
	if d.multiSensor() {
		return sensor + "_" + segment
	}
	return segment
}

func (d *Document) hasSensor(name string) bool {
	for _, sensor := range d.sensors {
		if sensor.Name == name {
			return true
		}
	}
	return false
}

// SensorPrimary returns the extension that carries sensor-level records
// for sensor: "{sensor}_PRIMARY" when the document has one, PRIMARY
// otherwise.
func (d *Document) SensorPrimary(sensor string) string {
	if d.multiSensor() {
		name := sensor + "_" + PrimaryName
		if _, ok := d.index[name]; ok {
			return name
		}
	}
	return PrimaryName
}

// SegmentExtensions returns the segment extension names of sensor in
// document order.
func (d *Document) SegmentExtensions(sensor string) []string {
	if !d.hasSensor(sensor) {
		return nil
	}
	codes := geometry.SegmentNames()
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = d.segmentExtension(sensor, d.prefix+code)
	}
	return names
}

// SensorExtensions returns every extension belonging to sensor: its
// sensor primary (when distinct from PRIMARY) followed by its segments.
func (d *Document) SensorExtensions(sensor string) []string {
	segments := d.SegmentExtensions(sensor)
	if segments == nil {
		return nil
	}
	if primary := d.SensorPrimary(sensor); primary != PrimaryName {
		return append([]string{primary}, segments...)
	}
	return segments
}

// LoadGeometry rewrites the size, section, and mosaic records of each
// sensor named in geometries. Records the templates do not define are
// skipped. Calling it again with the same geometry leaves the document
// unchanged.
func (d *Document) LoadGeometry(geometries map[string]geometry.SensorGeometry) error {
	for sensor, sensorGeometry := range geometries {
		if !d.hasSensor(sensor) {
			return fmt.Errorf("load geometry: %w for sensor %s", ErrUnknownExtension, sensor)
		}
		primary := d.SensorPrimary(sensor)
		for _, record := range sensorGeometry.Primary() {
			d.UpdateRecord(record.Keyword, record.Value, primary)
		}

		codes := geometry.SegmentNames()
		names := d.SegmentExtensions(sensor)
		for i, code := range codes {
			records, err := sensorGeometry.Segment(code)
			if err != nil {
				return fmt.Errorf("load geometry for %s: %w", names[i], err)
			}
			for _, record := range records {
				d.UpdateRecord(record.Keyword, record.Value, names[i])
			}
		}
	}
	return nil
}
