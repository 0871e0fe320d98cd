// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the header service tests.
//
// Timing in tests runs on lib/clock's fake clock. The one exception is
// waiting on a goroutine: [RequireReceive], [RequireSend], and
// [RequireClosed] bound that wait with a real timer and fail the test
// when it expires, so a broken handoff fails fast instead of hanging.
//
// [WriteFile] places a fixture in a per-test temporary directory, and
// [ImageName] hands out image names that never collide within a test
// binary.
package testutil
