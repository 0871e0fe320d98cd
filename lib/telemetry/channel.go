// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"time"
)

// ChannelID identifies one subscription on the transport. Two specs
// that share a ChannelID share the subscription and the sample.
type ChannelID struct {
	Device string `json:"device"`
	Index  int    `json:"index"`
	Topic  string `json:"topic"`
}

// String formats the channel as "Device:Index/Topic".
func (c ChannelID) String() string {
	return fmt.Sprintf("%s:%d/%s", c.Device, c.Index, c.Topic)
}

// SampleKind distinguishes periodic telemetry from discrete events.
type SampleKind string

const (
	Telemetry SampleKind = "Telemetry"
	Event     SampleKind = "Event"
)

// ParseSampleKind accepts the configuration spellings of a sample kind.
// An empty string defaults to Event.
func ParseSampleKind(s string) (SampleKind, error) {
	switch s {
	case "", "Event", "event":
		return Event, nil
	case "Telemetry", "telemetry":
		return Telemetry, nil
	default:
		return "", fmt.Errorf("unknown sample kind %q (want Telemetry or Event)", s)
	}
}

// Sample is the latest value the transport holds for a channel: a
// record of named fields as published by the controller.
type Sample struct {
	Fields     map[string]any
	ReceivedAt time.Time

	// ExpiresAt, when non-zero, is the instant after which the sample
	// is treated as absent.
	ExpiresAt time.Time
}

// Expired reports whether the sample has passed its expiry at now.
func (s Sample) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Field returns a named field, normalized (see Normalize).
func (s Sample) Field(name string) (any, bool) {
	value, ok := s.Fields[name]
	if !ok {
		return nil, false
	}
	return Normalize(value), true
}

// Source is the read side of the transport. Current must not block.
type Source interface {
	Current(channel ChannelID) (Sample, bool)
}

// Channels returns the distinct channels referenced by specs followed
// by any extra channels (lifecycle events, geometry), each appearing
// exactly once, in first-seen order.
func Channels(specs []ChannelSpec, extra ...ChannelID) []ChannelID {
	seen := make(map[ChannelID]bool, len(specs)+len(extra))
	var channels []ChannelID
	add := func(channel ChannelID) {
		if channel.Device == "" || seen[channel] {
			return
		}
		seen[channel] = true
		channels = append(channels, channel)
	}
	for _, spec := range specs {
		add(spec.Channel)
	}
	for _, channel := range extra {
		add(channel)
	}
	return channels
}
