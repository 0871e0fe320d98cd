// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/headerservice/lib/clock"
	"github.com/bureau-foundation/headerservice/lib/telemetry"
)

// Script is a scripted sequence of samples, authored as JSONC:
//
//	{
//	  // start of integration
//	  "steps": [
//	    {"after": "0s", "device": "ATCamera", "topic": "logevent_startIntegration",
//	     "fields": {"imageName": "AT_O_20240101_000001", "exposureTime": 15.0}},
//	    {"after": "10s", "device": "ATCamera", "topic": "logevent_endReadout",
//	     "fields": {"imageName": "AT_O_20240101_000001"}},
//	  ],
//	}
type Script struct {
	Steps []Step `json:"steps"`
}

// Step writes one sample. After is relative to the previous step and
// TTL, when set, expires the sample; both use time.ParseDuration
// syntax.
type Step struct {
	After  string         `json:"after,omitempty"`
	Device string         `json:"device"`
	Index  int            `json:"index,omitempty"`
	Topic  string         `json:"topic"`
	Fields map[string]any `json:"fields"`
	TTL    string         `json:"ttl,omitempty"`

	after time.Duration
	ttl   time.Duration
}

// Channel returns the channel the step writes to.
func (s Step) Channel() telemetry.ChannelID {
	return telemetry.ChannelID{Device: s.Device, Index: s.Index, Topic: s.Topic}
}

// ParseScript parses a JSONC replay script. Numbers without a
// fraction or exponent decode as int64, all others as float64.
func ParseScript(data []byte) (*Script, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()
	var script Script
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("parsing replay script: %w", err)
	}

	for i := range script.Steps {
		step := &script.Steps[i]
		if step.Device == "" || step.Topic == "" {
			return nil, fmt.Errorf("replay step %d: device and topic are required", i)
		}
		var err error
		if step.After != "" {
			if step.after, err = time.ParseDuration(step.After); err != nil || step.after < 0 {
				return nil, fmt.Errorf("replay step %d: invalid after %q", i, step.After)
			}
		}
		if step.TTL != "" {
			if step.ttl, err = time.ParseDuration(step.TTL); err != nil || step.ttl < 0 {
				return nil, fmt.Errorf("replay step %d: invalid ttl %q", i, step.TTL)
			}
		}
		for name, value := range step.Fields {
			step.Fields[name] = numbers(value)
		}
	}
	return &script, nil
}

// ReadScript reads and parses a JSONC replay script from disk.
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return script, nil
}

// numbers replaces json.Number values with int64 or float64.
func numbers(value any) any {
	switch v := value.(type) {
	case json.Number:
		if integer, err := v.Int64(); err == nil {
			return integer
		}
		number, _ := v.Float64()
		return number
	case []any:
		for i := range v {
			v[i] = numbers(v[i])
		}
		return v
	case map[string]any:
		for key := range v {
			v[key] = numbers(v[key])
		}
		return v
	default:
		return value
	}
}

// Duration is the total scripted time.
func (s *Script) Duration() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.after
	}
	return total
}

// Replay writes the script's samples to b, waiting on clk between
// steps. It returns early with the context error if ctx is cancelled.
func Replay(ctx context.Context, script *Script, b *Bus, clk clock.Clock) error {
	for i, step := range script.Steps {
		if step.after > 0 {
			select {
			case <-clk.After(step.after):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		b.logger.Debug("replaying step", "step", i, "channel", step.Channel().String())
		b.Write(step.Channel(), step.Fields, step.ttl)
	}
	return nil
}
