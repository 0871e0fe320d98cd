// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// header-service writes one header file per image. It listens for the
// start and end events named in its config, collects the configured
// telemetry at each, writes the header into the output directory, and
// announces it: over HTTP from the output directory (web mode), by
// upload to an S3 bucket (s3 mode), or by copy into a local bucket
// directory (dir mode).
//
// The config file is given by --config or HEADERSERVICE_CONFIG. With
// --replay the service feeds a scripted sequence of samples onto its
// transport, which is how it runs without a live control system:
//
//	header-service --config atscam.yaml --replay night.jsonc --log-format text
//
// Operators change the summary state with samples on the command
// channel (events.command) whose field names start, enable, disable, or
// standby. Signals are processed only while enabled. The state and the
// last fault are published on events.state_topic after every command.
//
// SIGINT or SIGTERM drops any open session, waits for in-flight
// announcements, and exits.
package main
