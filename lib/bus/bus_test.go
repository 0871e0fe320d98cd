// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
	"github.com/bureau-foundation/headerservice/lib/testutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestBus() (*Bus, *clock.FakeClock) {
	fake := clock.Fake(epoch)
	return New(fake, slog.New(slog.NewTextHandler(io.Discard, nil))), fake
}

var startIntegration = telemetry.ChannelID{Device: "ATCamera", Topic: "logevent_startIntegration"}

func TestWriteStoresLatestAndNotifies(t *testing.T) {
	b, fake := newTestBus()
	if _, ok := b.Current(startIntegration); ok {
		t.Fatal("empty bus returned a sample")
	}

	var received []string
	cancel := b.Subscribe(startIntegration, func(sample telemetry.Sample) {
		received = append(received, sample.Fields["imageName"].(string))
	})

	fields := map[string]any{"imageName": "AT_O_20240101_000001"}
	b.Write(startIntegration, fields, 0)
	fields["imageName"] = "mutated"
	fake.Advance(time.Second)
	b.Write(startIntegration, map[string]any{"imageName": "AT_O_20240101_000002"}, 0)

	if len(received) != 2 || received[0] != "AT_O_20240101_000001" {
		t.Fatalf("received = %v", received)
	}
	sample, ok := b.Current(startIntegration)
	if !ok || sample.Fields["imageName"] != "AT_O_20240101_000002" {
		t.Fatalf("Current = %+v, %v", sample, ok)
	}
	if !sample.ReceivedAt.Equal(epoch.Add(time.Second)) {
		t.Errorf("ReceivedAt = %v", sample.ReceivedAt)
	}

	cancel()
	b.Write(startIntegration, nil, 0)
	if len(received) != 2 {
		t.Errorf("cancelled subscriber still notified")
	}
	if b.Subscribers(startIntegration) != 0 {
		t.Errorf("Subscribers = %d after cancel", b.Subscribers(startIntegration))
	}
}

func TestWriteTTL(t *testing.T) {
	b, fake := newTestBus()
	channel := telemetry.ChannelID{Device: "ATDome", Topic: "position"}
	b.Write(channel, map[string]any{"azimuth": 12.5}, 2*time.Second)

	sample, _ := b.Current(channel)
	if sample.Expired(fake.Now()) {
		t.Fatal("sample expired immediately")
	}
	fake.Advance(2 * time.Second)
	if !sample.Expired(fake.Now()) {
		t.Error("sample not expired after ttl")
	}
}

func TestPublish(t *testing.T) {
	b, _ := newTestBus()
	var got []string
	cancel := b.SubscribeTopic("largeFileObjectAvailable", func(payload []byte) { got = append(got, string(payload)) })
	if err := b.Publish("largeFileObjectAvailable", []byte("one")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish("other", []byte("ignored")); err != nil {
		t.Fatalf("Publish to unheard topic: %v", err)
	}
	cancel()
	b.Publish("largeFileObjectAvailable", []byte("two"))
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("got = %v", got)
	}
	if err := b.Publish("", nil); err == nil {
		t.Error("Publish with empty topic should fail")
	}
}

const script = `{
  // A single exposure.
  "steps": [
    {"device": "ATCamera", "topic": "logevent_startIntegration",
     "fields": {"imageName": "AT_O_20240101_000001", "exposureTime": 15.0, "imageIndex": 1}},
    {"after": "2s", "device": "ATPtg", "topic": "currentTimesToTai", "ttl": "1s",
     "fields": {"tai": 1704067239.5, "names": ["a", "b"]}},
    {"after": "8s", "device": "ATCamera", "topic": "logevent_endReadout",
     "fields": {"imageName": "AT_O_20240101_000001"}},
  ],
}`

func TestParseScript(t *testing.T) {
	parsed, err := ParseScript([]byte(script))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(parsed.Steps) != 3 {
		t.Fatalf("steps = %d", len(parsed.Steps))
	}
	fields := parsed.Steps[0].Fields
	if fields["imageIndex"] != int64(1) {
		t.Errorf("imageIndex = %#v, want int64", fields["imageIndex"])
	}
	if fields["exposureTime"] != 15.0 {
		t.Errorf("exposureTime = %#v, want float64", fields["exposureTime"])
	}
	if parsed.Duration() != 10*time.Second {
		t.Errorf("Duration = %v", parsed.Duration())
	}

	for _, bad := range []string{
		`{"steps": [{"topic": "x"}]}`,
		`{"steps": [{"device": "d", "topic": "x", "after": "soon"}]}`,
		`{"steps": [{"device": "d", "topic": "x", "ttl": "-1s"}]}`,
		`{"steps": `,
	} {
		if _, err := ParseScript([]byte(bad)); err == nil {
			t.Errorf("ParseScript(%s) should fail", bad)
		}
	}
}

func TestReplayFollowsClock(t *testing.T) {
	b, fake := newTestBus()
	parsed, err := ParseScript([]byte(script))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	ends := make(chan time.Time, 1)
	b.Subscribe(telemetry.ChannelID{Device: "ATCamera", Topic: "logevent_endReadout"}, func(sample telemetry.Sample) {
		ends <- sample.ReceivedAt
	})

	done := make(chan error, 1)
	go func() { done <- Replay(context.Background(), parsed, b, fake) }()

	fake.WaitForTimers(1)
	if _, ok := b.Current(startIntegration); !ok {
		t.Fatal("first step not written before the first wait")
	}
	fake.Advance(2 * time.Second)
	fake.WaitForTimers(1)
	fake.Advance(8 * time.Second)

	if at := testutil.RequireReceive(t, ends, 5*time.Second, "end readout"); !at.Equal(epoch.Add(10 * time.Second)) {
		t.Errorf("end readout at %v", at)
	}
	if err := testutil.RequireReceive(t, done, 5*time.Second, "replay finished"); err != nil {
		t.Errorf("Replay: %v", err)
	}
}

func TestReplayCancelled(t *testing.T) {
	b, fake := newTestBus()
	parsed, _ := ParseScript([]byte(script))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Replay(ctx, parsed, b, fake) }()

	fake.WaitForTimers(1)
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "replay cancelled"); !errors.Is(err, context.Canceled) {
		t.Errorf("Replay = %v, want context.Canceled", err)
	}
}
