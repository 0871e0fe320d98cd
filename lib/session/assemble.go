// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/headerservice/lib/astro"
	"github.com/bureau-foundation/headerservice/lib/geometry"
	"github.com/bureau-foundation/headerservice/lib/header"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// derive adds the records computed from the collected values, the
// image name, and the clock. It returns the observation time used to
// date the artifact.
func (m *Manager) derive(s *Session) time.Time {
	metadata := s.Metadata
	scale := m.options.TimeScale

	now := astro.Now(m.clock, scale)
	metadata["DATE"] = astro.ISOT(now)
	metadata["MJD"] = astro.MJD(now)
	metadata["TIMESYS"] = string(scale)

	times := make(map[string]time.Time, 3)
	for _, key := range []string{"DATE-OBS", "DATE-BEG", "DATE-END"} {
		value, ok := metadata[key]
		if !ok {
			continue
		}
		t, err := toTime(value)
		if err != nil {
			m.logger.Warn("dropping unreadable timestamp",
				"image_name", s.ImageName,
				"key", key,
				"error", err,
			)
			delete(metadata, key)
			continue
		}
		times[key] = t
		metadata[key] = astro.ISOT(t)
		metadata["MJD-"+strings.TrimPrefix(key, "DATE-")] = astro.MJD(t)
	}

	metadata["FILENAME"] = s.FITSName
	metadata["OBSID"] = s.ImageName
	if seqnum, dayobs, err := parseImageName(s.ImageName); err != nil {
		m.logger.Warn("cannot derive SEQNUM and DAYOBS", "image_name", s.ImageName, "error", err)
	} else {
		metadata["SEQNUM"] = seqnum
		metadata["DAYOBS"] = dayobs
	}

	site := m.options.Site
	metadata["OBS-LAT"] = site.Latitude
	metadata["OBS-LONG"] = site.Longitude
	metadata["OBS-ELEV"] = site.Elevation

	for _, pair := range []struct {
		elevation, azimuth, ra, dec, when string
	}{
		{"ELSTART", "AZSTART", "RASTART", "DECSTART", "DATE-BEG"},
		{"ELEND", "AZEND", "RAEND", "DECEND", "DATE-END"},
	} {
		elevation, elevationOK := toFloat(metadata[pair.elevation])
		azimuth, azimuthOK := toFloat(metadata[pair.azimuth])
		if !elevationOK || !azimuthOK {
			continue
		}
		at, ok := times[pair.when]
		if !ok {
			at = now
		}
		ra, dec := astro.RADecFromAltAz(elevation, azimuth, astro.Convert(at, scale, astro.UTC), site)
		metadata[pair.ra] = ra
		metadata[pair.dec] = dec
	}

	for _, key := range []string{"DATE-OBS", "DATE-BEG"} {
		if t, ok := times[key]; ok {
			return t
		}
	}
	return now
}

// parseImageName splits a name of the form
// "{telescope}_{controller}_{dayobs}_{seqnum}".
func parseImageName(name string) (seqnum int64, dayobs string, err error) {
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return 0, "", fmt.Errorf("image name %q has %d fields, want at least 4", name, len(parts))
	}
	seqnum, err = strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("image name %q: sequence number: %w", name, err)
	}
	return seqnum, parts[2], nil
}

// loadGeometry applies the readout parameters from the geometry channel
// to every sensor. Without a configured channel the vendor defaults
// seeded at instantiation stay in place.
func (m *Manager) loadGeometry(s *Session) error {
	if m.options.GeometryChannel.Device == "" {
		return nil
	}
	sample, err := m.options.Extractor.Fetch(m.options.GeometryChannel)
	if err != nil {
		return fmt.Errorf("geometry channel %s: %w", m.options.GeometryChannel, err)
	}
	readout, err := readoutParameters(sample)
	if err != nil {
		return err
	}

	geometries := make(map[string]geometry.SensorGeometry, len(m.options.Sensors))
	for _, sensor := range m.options.Sensors {
		sensorGeometry, err := geometry.New(sensor.Vendor, readout)
		if err != nil {
			return fmt.Errorf("sensor %s: %w", sensor.Name, err)
		}
		geometries[sensor.Name] = sensorGeometry.WithPixelScale(m.options.Coordinates.PixelScale)
	}
	return s.Header.LoadGeometry(geometries)
}

// readoutParameters reads the readout fields of a geometry sample. A
// field published as an array contributes its first element.
func readoutParameters(sample telemetry.Sample) (geometry.ReadoutParameters, error) {
	var readout geometry.ReadoutParameters
	for _, field := range []struct {
		name   string
		target *int
	}{
		{"preCols", &readout.PreCols},
		{"overCols", &readout.OverCols},
		{"overRows", &readout.OverRows},
		{"readCols", &readout.ReadCols},
		{"readRows", &readout.ReadRows},
	} {
		value, ok := sample.Field(field.name)
		if !ok {
			continue
		}
		if sequence, ok := value.([]any); ok {
			if len(sequence) == 0 {
				continue
			}
			value = sequence[0]
		}
		number, ok := value.(int64)
		if !ok {
			floating, isFloat := value.(float64)
			if !isFloat || floating != float64(int64(floating)) {
				return readout, fmt.Errorf("readout parameter %s is not an integer (%v)", field.name, value)
			}
			number = int64(floating)
		}
		*field.target = int(number)
	}
	return readout, nil
}

// write copies the collected values into the document: scalars into
// PRIMARY, per-sensor values into each sensor's extensions, then the
// TAN block when a pointing is known. Keys the templates do not define
// are dropped.
func (m *Manager) write(s *Session) {
	doc := s.Header
	keys := make([]string, 0, len(s.Metadata))
	for key := range s.Metadata {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var skipped []string
	for _, key := range keys {
		written := false
		switch value := s.Metadata[key].(type) {
		case telemetry.PerSensor:
			for _, sensor := range value.Sensors() {
				for _, extension := range sensorTargets(doc, sensor) {
					if doc.UpdateRecord(key, value[sensor], extension) {
						written = true
					}
				}
			}
		default:
			written = doc.UpdateRecord(key, value, header.PrimaryName)
		}
		if !written {
			skipped = append(skipped, key)
		}
	}
	if len(skipped) > 0 {
		m.logger.Debug("values without a template record",
			"image_name", s.ImageName,
			"keys", strings.Join(skipped, ","),
		)
	}

	m.writePointing(s)
}

// sensorTargets is the sensor primary followed by the segments.
func sensorTargets(doc *header.Document, sensor string) []string {
	segments := doc.SegmentExtensions(sensor)
	if segments == nil {
		return nil
	}
	return append([]string{doc.SensorPrimary(sensor)}, segments...)
}

// writePointing writes the TAN projection for the collected RA, Dec,
// and rotation, globally or per sensor.
func (m *Manager) writePointing(s *Session) {
	coordinates := m.options.Coordinates
	ra, raOK := toFloat(s.Metadata[coordinates.RAKey])
	dec, decOK := toFloat(s.Metadata[coordinates.DecKey])
	if !raOK || !decOK {
		return
	}
	rotation, _ := toFloat(s.Metadata[coordinates.RotationKey])
	pointing := geometry.Pointing{RA: ra, Dec: dec, Rotation: rotation, Frame: coordinates.Frame}

	apply := func(sensor header.Sensor, extension string) {
		sensorGeometry := geometry.MustNew(sensor.Vendor).WithPixelScale(coordinates.PixelScale)
		for _, record := range sensorGeometry.TangentPlane(pointing) {
			s.Header.UpdateRecord(record.Keyword, record.Value, extension)
		}
	}
	if !coordinates.PerSensor {
		apply(m.options.Sensors[0], header.PrimaryName)
		return
	}
	for _, sensor := range m.options.Sensors {
		apply(sensor, s.Header.SensorPrimary(sensor.Name))
	}
}

func toFloat(value any) (float64, bool) {
	switch v := telemetry.Normalize(value).(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// toTime reads a timestamp published either as seconds since the epoch
// or as an ISOT string.
func toTime(value any) (time.Time, error) {
	switch v := telemetry.Normalize(value).(type) {
	case int64:
		return astro.FromUnix(float64(v)), nil
	case float64:
		return astro.FromUnix(v), nil
	case string:
		return astro.ParseISOT(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp %v (%T)", value, value)
	}
}
