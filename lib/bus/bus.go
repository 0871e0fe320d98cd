// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// Transport is the pub/sub surface the header service needs.
type Transport interface {
	telemetry.Source

	// Subscribe registers fn for every sample written to channel. The
	// returned function cancels the subscription.
	Subscribe(channel telemetry.ChannelID, fn func(telemetry.Sample)) (cancel func())

	// Publish sends payload on an outbound topic.
	Publish(topic string, payload []byte) error
}

// Bus is an in-memory Transport. It keeps the latest sample per
// channel and delivers writes synchronously to subscribers, on the
// writing goroutine, in subscription order.
type Bus struct {
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	latest      map[telemetry.ChannelID]telemetry.Sample
	subscribers map[telemetry.ChannelID][]*subscriber
	topics      map[string][]*topicSubscriber
	nextID      uint64
}

type subscriber struct {
	id uint64
	fn func(telemetry.Sample)
}

type topicSubscriber struct {
	id uint64
	fn func([]byte)
}

var _ Transport = (*Bus)(nil)

// New returns an empty Bus. Sample timestamps come from clk.
func New(clk clock.Clock, logger *slog.Logger) *Bus {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		clock:       clk,
		logger:      logger,
		latest:      make(map[telemetry.ChannelID]telemetry.Sample),
		subscribers: make(map[telemetry.ChannelID][]*subscriber),
		topics:      make(map[string][]*topicSubscriber),
	}
}

// Write stores fields as the latest sample on channel and delivers it
// to the channel's subscribers. A positive ttl stamps ExpiresAt.
func (b *Bus) Write(channel telemetry.ChannelID, fields map[string]any, ttl time.Duration) telemetry.Sample {
	now := b.clock.Now()
	sample := telemetry.Sample{Fields: maps.Clone(fields), ReceivedAt: now}
	if sample.Fields == nil {
		sample.Fields = map[string]any{}
	}
	if ttl > 0 {
		sample.ExpiresAt = now.Add(ttl)
	}

	b.mu.Lock()
	b.latest[channel] = sample
	targets := append([]*subscriber(nil), b.subscribers[channel]...)
	b.mu.Unlock()

	b.logger.Debug("sample written", "channel", channel.String(), "subscribers", len(targets))
	for _, target := range targets {
		target.fn(sample)
	}
	return sample
}

// Current returns the latest sample on channel. Expiry is left to the
// caller.
func (b *Bus) Current(channel telemetry.ChannelID) (telemetry.Sample, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sample, ok := b.latest[channel]
	return sample, ok
}

// Subscribe implements [Transport].
func (b *Bus) Subscribe(channel telemetry.ChannelID, fn func(telemetry.Sample)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers[channel] = append(b.subscribers[channel], &subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subscribers[channel]
		for i, entry := range list {
			if entry.id == id {
				b.subscribers[channel] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subscribers[channel]) == 0 {
			delete(b.subscribers, channel)
		}
	}
}

// Publish delivers payload to the topic's subscribers. Publishing to a
// topic nobody listens on is not an error.
func (b *Bus) Publish(topic string, payload []byte) error {
	if topic == "" {
		return fmt.Errorf("publish: empty topic")
	}
	b.mu.Lock()
	targets := append([]*topicSubscriber(nil), b.topics[topic]...)
	b.mu.Unlock()

	for _, target := range targets {
		target.fn(append([]byte(nil), payload...))
	}
	return nil
}

// SubscribeTopic registers fn for payloads published on topic.
func (b *Bus) SubscribeTopic(topic string, fn func([]byte)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], &topicSubscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.topics[topic]
		for i, entry := range list {
			if entry.id == id {
				b.topics[topic] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Subscribers returns the number of subscriptions on channel.
func (b *Bus) Subscribers(channel telemetry.ChannelID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[channel])
}
