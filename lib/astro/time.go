// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package astro provides the small amount of positional astronomy the
// header service derives itself: time-scale handling for DATE/MJD
// records and the conversion of telescope elevation/azimuth into right
// ascension and declination.
//
// Times in this package are "scale-tagged": a time.Time whose wall
// clock fields read in the named scale (UTC or TAI), always stored with
// the UTC location. Use [Convert] to move between scales.
package astro

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bureau-foundation/headerservice/lib/clock"
)

// Scale is a time scale.
type Scale string

const (
	UTC Scale = "UTC"
	TAI Scale = "TAI"
)

// TAIOffset is TAI-UTC, constant since the 2017 leap second.
const TAIOffset = 37 * time.Second

// ParseScale accepts "utc" or "tai" case-insensitively. Empty means UTC.
func ParseScale(s string) (Scale, error) {
	switch strings.ToUpper(s) {
	case "", "UTC":
		return UTC, nil
	case "TAI":
		return TAI, nil
	default:
		return "", fmt.Errorf("unknown time scale %q (want UTC or TAI)", s)
	}
}

// Convert re-expresses t, read in scale from, in scale to.
func Convert(t time.Time, from, to Scale) time.Time {
	t = t.UTC()
	switch {
	case from == to:
		return t
	case from == UTC && to == TAI:
		return t.Add(TAIOffset)
	default:
		return t.Add(-TAIOffset)
	}
}

// FromUnix turns a floating-point seconds-since-epoch timestamp into a
// time.Time, keeping microsecond precision. The result reads in the
// same scale as the timestamp.
func FromUnix(seconds float64) time.Time {
	whole, fraction := math.Modf(seconds)
	micros := math.Round(fraction * 1e6)
	return time.Unix(int64(whole), int64(micros)*int64(time.Microsecond)).UTC()
}

// Now returns the clock's current time expressed in scale.
func Now(clk clock.Clock, scale Scale) time.Time {
	return Convert(clk.Now(), UTC, scale)
}

// isotLayout is ISO 8601 with millisecond precision and no zone.
const isotLayout = "2006-01-02T15:04:05.000"

// ISOT formats t as "2006-01-02T15:04:05.000".
func ISOT(t time.Time) string {
	return t.UTC().Format(isotLayout)
}

// ParseISOT parses the ISOT layout. Fractional seconds are optional.
func ParseISOT(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
}

// mjdUnixEpoch is the Modified Julian Date of 1970-01-01T00:00:00.
const mjdUnixEpoch = 40587.0

// MJD returns the Modified Julian Date of t.
func MJD(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + mjdUnixEpoch
}

// DayObs returns the observing day of t as YYYYMMDD: the calendar date
// twelve hours earlier, so a night's exposures share one value.
func DayObs(t time.Time) string {
	return t.UTC().Add(-12 * time.Hour).Format("20060102")
}
