// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package astro

import (
	"math"
	"time"
)

// Site is an observatory location.
type Site struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`  // degrees, north positive
	Longitude float64 `yaml:"longitude"` // degrees, east positive
	Elevation float64 `yaml:"elevation"` // meters
}

// CerroPachon is the default site.
var CerroPachon = Site{
	Name:      "Cerro Pachon",
	Latitude:  -30.244639,
	Longitude: -70.749417,
	Elevation: 2663.0,
}

const degree = math.Pi / 180

// GMST returns Greenwich mean sidereal time at t in degrees [0, 360).
func GMST(t time.Time) float64 {
	days := float64(t.UnixNano())/float64(24*time.Hour) + 2440587.5 - 2451545.0
	return normalizeDegrees(280.46061837 + 360.98564736629*days)
}

// RADecFromAltAz converts a horizontal position (altitude and azimuth
// in degrees, azimuth measured from north through east) observed from
// site at UTC time t into right ascension and declination in degrees.
// The result is the apparent position of date without refraction,
// accurate to a few arcminutes, which is the precision of the pointing
// telemetry it is computed from.
func RADecFromAltAz(altitude, azimuth float64, t time.Time, site Site) (ra, dec float64) {
	alt := altitude * degree
	az := azimuth * degree
	lat := site.Latitude * degree

	sinDec := math.Sin(alt)*math.Sin(lat) + math.Cos(alt)*math.Cos(lat)*math.Cos(az)
	sinDec = math.Max(-1, math.Min(1, sinDec))
	decRad := math.Asin(sinDec)

	cosDec := math.Cos(decRad)
	var hourAngle float64
	if cosDec > 1e-12 {
		sinH := -math.Sin(az) * math.Cos(alt) / cosDec
		cosH := (math.Sin(alt) - math.Sin(lat)*sinDec) / (math.Cos(lat) * cosDec)
		hourAngle = math.Atan2(sinH, cosH) / degree
	}

	localSidereal := GMST(t) + site.Longitude
	return normalizeDegrees(localSidereal - hourAngle), decRad / degree
}

func normalizeDegrees(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}
