// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks each image from its start signal to its end
// signal and turns the values collected in between into a header file.
//
// A [Manager] holds at most one open [Session] per image name. The
// start signal instantiates the header templates, collects the
// start-phase telemetry, and arms a timer sized from the exposure time.
// The end signal collects the end-phase telemetry, derives the dates,
// sequence number, and sky coordinates, applies the readout geometry,
// and writes the header. Upload and announcement run in the background
// through an [Announcer]. A timer that fires first discards the
// session; a later end signal for the same image is an orphan.
//
// Signals arrive through [Manager.Run], usually fed by [Manager.Bind]
// from the transport's start and end events. Every path that touches a
// session runs under one mutex, so an end signal and its timer cannot
// both act on the same session.
package session
