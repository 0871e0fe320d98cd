// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry executes the header service's declarative
// "which value, which transform" plan against the latest samples
// published by observatory controllers.
//
// Each header keyword the service collects is described by a
// [ChannelSpec]: the channel that carries it (device, index, topic), the
// field inside the sample, an extraction [Rule], and an optional scale.
// Rules are resolved from configuration once, at load time, into one of
// the tagged variants [Scalar], [FirstOfArray], [IndexedArray],
// [KeyedArray], [PerSensorArray], or [EnumDecode].
//
// [Extractor.Extract] runs a batch of keys. Every channel is read at most
// once per batch even when several keys share it. A missing or expired
// sample, a missing field, or a rule that does not fit the payload
// produces a [Warning] for that key alone; the batch never fails as a
// whole.
//
// Array fields that pack several names into one string use
// backslash-escaped separators; see [SplitEscaped].
package telemetry
