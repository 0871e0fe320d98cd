// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the header
// service.
//
// Configuration is loaded from a single file specified by either the
// HEADERSERVICE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no discovery. The
// file is decoded over [Default], so it only needs to name what differs
// from the auxiliary-telescope defaults; unknown fields are rejected.
//
// Variable expansion is performed on path, address, and credential
// fields after loading: ${VAR} and ${VAR:-default} patterns are
// expanded from the environment. No other environment variables
// override config values.
//
// The telemetry key table is resolved into typed telemetry.ChannelSpec
// values by [Config.ChannelSpecs]:
//
//	telemetry:
//	  - keyword: EXPTIME
//	    device: ATCamera
//	    topic: logevent_startIntegration
//	    value: exposureTime
//	    collect: start
//	  - keyword: CCDTEMP
//	    device: ATCamera
//	    topic: wreb
//	    kind: Telemetry
//	    value: temperatures
//	    rule: per-sensor:sensorNames
//
// [Config.Validate] reports every problem at once with errors.Join.
package config
