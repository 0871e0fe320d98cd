// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package announce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/headerservice/lib/codec"
)

// Notification is the largeFileObjectAvailable record published for
// each header. Field names are the ones downstream consumers read.
type Notification struct {
	ByteSize  int64   `json:"byteSize"`
	CheckSum  string  `json:"checkSum"`
	Generator string  `json:"generator"`
	MimeType  string  `json:"mimeType"`
	URL       string  `json:"url"`
	ID        string  `json:"id"`
	Version   float64 `json:"version"`
	Priority  int     `json:"priority"`

	// Trace is the session identifier, for correlating logs.
	Trace string `json:"trace,omitempty"`
}

// Publisher delivers a notification to one audience.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) error
}

// StreamPublisher appends each notification to w as one CBOR item.
// The stream is a CBOR sequence readable with codec.NewDecoder.
type StreamPublisher struct {
	mu      sync.Mutex
	encoder *codec.Encoder
}

// NewStreamPublisher returns a publisher writing to w.
func NewStreamPublisher(w io.Writer) *StreamPublisher {
	return &StreamPublisher{encoder: codec.NewEncoder(w)}
}

// Publish implements [Publisher].
func (p *StreamPublisher) Publish(ctx context.Context, notification Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.encoder.Encode(notification); err != nil {
		return fmt.Errorf("writing notification stream: %w", err)
	}
	return nil
}

// ReadStream decodes every notification in a CBOR sequence.
func ReadStream(r io.Reader) ([]Notification, error) {
	decoder := codec.NewDecoder(r)
	var notifications []Notification
	for {
		var notification Notification
		err := decoder.Decode(&notification)
		if errors.Is(err, io.EOF) {
			return notifications, nil
		}
		if err != nil {
			return notifications, fmt.Errorf("notification %d: %w", len(notifications), err)
		}
		notifications = append(notifications, notification)
	}
}

// topicPublisher is the outbound half of the transport.
type topicPublisher interface {
	Publish(topic string, payload []byte) error
}

// BusPublisher publishes the CBOR-encoded notification on a transport
// topic.
type BusPublisher struct {
	Transport topicPublisher
	Topic     string
}

// Publish implements [Publisher].
func (p *BusPublisher) Publish(ctx context.Context, notification Notification) error {
	payload, err := codec.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := p.Transport.Publish(p.Topic, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.Topic, err)
	}
	return nil
}

// LogPublisher records the notification in the structured log.
type LogPublisher struct {
	Logger *slog.Logger
	Label  string
}

// Publish implements [Publisher].
func (p *LogPublisher) Publish(ctx context.Context, notification Notification) error {
	p.Logger.Info("sent largeFileObjectAvailable",
		"audience", p.Label,
		"id", notification.ID,
		"url", notification.URL,
		"byte_size", notification.ByteSize,
		"checksum", notification.CheckSum,
		"mime_type", notification.MimeType,
	)
	return nil
}

// MultiPublisher publishes to every publisher in order. All are
// attempted; failures are joined.
type MultiPublisher []Publisher

// Publish implements [Publisher].
func (m MultiPublisher) Publish(ctx context.Context, notification Notification) error {
	var errs []error
	for _, publisher := range m {
		if err := publisher.Publish(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
