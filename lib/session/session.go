// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/header"
)

var (
	// ErrOrphanEndSignal means an end signal arrived for an image with
	// no open session: it was never started, already closed, or timed
	// out. The signal is ignored.
	ErrOrphanEndSignal = errors.New("end signal without an open session")

	// ErrInactive means the signal arrived while the service was not
	// active and was ignored.
	ErrInactive = errors.New("service is not active")
)

// State is the lifecycle position of one image's session.
type State string

const (
	// Idle: no session exists for the image.
	Idle State = "idle"
	// Armed: started, waiting for the end signal with a timer running.
	Armed State = "armed"
	// Closing: the end signal arrived and the header is being built.
	Closing State = "closing"
	// TimedOut: the timer fired before the end signal.
	TimedOut State = "timed_out"
)

// Session is the in-flight state of one image between its start and
// end signals.
type Session struct {
	ID        uuid.UUID
	ImageName string

	// Metadata holds the values collected so far, keyed by keyword.
	Metadata map[string]any

	// Header is the document instantiated at start.
	Header *header.Document

	// HeaderName and HeaderPath locate the written header; FITSName is
	// the FILENAME record value.
	HeaderName string
	HeaderPath string
	FITSName   string

	CreatedAt time.Time
	Timeout   time.Duration

	// CompletedOK is set once the header has been written.
	CompletedOK bool

	state State
	timer *clock.Timer
}

// State returns the session's lifecycle state.
func (s *Session) State() State { return s.state }

// snapshot copies s for callers outside the manager's lock.
func (s *Session) snapshot() Session {
	copied := *s
	copied.Metadata = maps.Clone(s.Metadata)
	if s.Header != nil {
		copied.Header = s.Header.Clone()
	}
	copied.timer = nil
	return copied
}

// SignalKind distinguishes the two lifecycle signals.
type SignalKind string

const (
	Start SignalKind = "start"
	End   SignalKind = "end"
)

// Signal is one lifecycle signal for one image.
type Signal struct {
	Kind      SignalKind
	ImageName string
}
