// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// Subscriber is the event side of the transport.
type Subscriber interface {
	Subscribe(channel telemetry.ChannelID, fn func(telemetry.Sample)) (cancel func())
}

// Trigger names the event that carries one lifecycle signal and the
// field holding the image name.
type Trigger struct {
	Channel telemetry.ChannelID
	Field   string
}

// Bind subscribes to the start and end events and forwards each as a
// Signal on signals. Samples without a string image name are dropped,
// as are signals that find the buffer full once ctx is done. The
// returned function cancels both subscriptions.
func (m *Manager) Bind(ctx context.Context, transport Subscriber, start, end Trigger, signals chan<- Signal) (cancel func()) {
	forward := func(kind SignalKind, trigger Trigger) func(telemetry.Sample) {
		return func(sample telemetry.Sample) {
			value, _ := sample.Field(trigger.Field)
			name, ok := value.(string)
			if !ok || name == "" {
				m.logger.Warn("event without an image name",
					"signal", string(kind),
					"channel", trigger.Channel.String(),
					"field", trigger.Field,
				)
				return
			}
			select {
			case signals <- Signal{Kind: kind, ImageName: name}:
			case <-ctx.Done():
				m.logger.Warn("dropping signal after shutdown",
					"signal", string(kind),
					"image_name", name,
				)
			}
		}
	}
	cancelStart := transport.Subscribe(start.Channel, forward(Start, start))
	cancelEnd := transport.Subscribe(end.Channel, forward(End, end))
	return func() {
		cancelStart()
		cancelEnd()
	}
}

// Run dispatches signals until ctx is cancelled or signals is closed.
// Signals are handled one at a time in arrival order. Per-image
// failures are logged and do not stop the loop.
func (m *Manager) Run(ctx context.Context, signals <-chan Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case signal, ok := <-signals:
			if !ok {
				return nil
			}
			if err := m.Dispatch(signal); err != nil {
				m.logger.Debug("signal not processed",
					"signal", string(signal.Kind),
					"image_name", signal.ImageName,
					"error", err,
				)
			}
		}
	}
}

// Dispatch handles one signal.
func (m *Manager) Dispatch(signal Signal) error {
	switch signal.Kind {
	case Start:
		return m.HandleStart(signal.ImageName)
	case End:
		return m.HandleEnd(signal.ImageName)
	default:
		return fmt.Errorf("unknown signal kind %q", signal.Kind)
	}
}
