// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/headerservice/lib/clock"
)

var (
	// ErrMissingSample means the transport holds no sample for the
	// key's channel.
	ErrMissingSample = errors.New("no sample available")

	// ErrExpiredSample means the channel's latest sample is past its
	// expiry and is treated as absent.
	ErrExpiredSample = errors.New("sample expired")

	// ErrMissingField means the sample has no field of the configured
	// name.
	ErrMissingField = errors.New("field not present in sample")

	// ErrRuleMismatch means the extraction rule does not fit the shape
	// of the value it was given.
	ErrRuleMismatch = errors.New("extraction rule does not fit value")

	// ErrUnknownKey means a key was requested that no ChannelSpec
	// defines.
	ErrUnknownKey = errors.New("unknown key")
)

// Phase is the lifecycle signal after which a key is collected.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// ParsePhase accepts "start" and "end" as well as the long event
// names used by older configurations.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "start", "start_collection_event":
		return PhaseStart, nil
	case "", "end", "end_collection_event":
		return PhaseEnd, nil
	default:
		return "", fmt.Errorf("unknown collection phase %q (want start or end)", s)
	}
}

// ChannelSpec is the static description of one collected key.
type ChannelSpec struct {
	Key          string
	Channel      ChannelID
	Kind         SampleKind
	ValueField   string
	Rule         Rule
	Scale        *float64
	CollectAfter Phase
}

// Warning is a per-key extraction failure. The key is omitted from the
// result; other keys in the batch are unaffected.
type Warning struct {
	Key     string
	Channel ChannelID
	Err     error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("key %s from %s: %v", w.Key, w.Channel, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

// Extractor evaluates ChannelSpecs against a Source. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	specs  map[string]ChannelSpec
	order  []string
	source Source
	clock  clock.Clock
	logger *slog.Logger
}

// NewExtractor indexes specs by key. Keys must be unique and every spec
// needs a channel and a value field. A nil Rule defaults to Scalar.
func NewExtractor(specs []ChannelSpec, source Source, clk clock.Clock, logger *slog.Logger) (*Extractor, error) {
	if source == nil {
		return nil, errors.New("telemetry: source is required")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	extractor := &Extractor{
		specs:  make(map[string]ChannelSpec, len(specs)),
		source: source,
		clock:  clk,
		logger: logger,
	}
	for _, spec := range specs {
		if spec.Key == "" {
			return nil, errors.New("telemetry: spec with empty key")
		}
		if _, duplicate := extractor.specs[spec.Key]; duplicate {
			return nil, fmt.Errorf("telemetry: duplicate key %q", spec.Key)
		}
		if spec.Channel.Device == "" || spec.Channel.Topic == "" {
			return nil, fmt.Errorf("telemetry: key %q has no channel", spec.Key)
		}
		if spec.ValueField == "" {
			return nil, fmt.Errorf("telemetry: key %q has no value field", spec.Key)
		}
		if spec.Rule == nil {
			spec.Rule = Scalar{}
		}
		extractor.specs[spec.Key] = spec
		extractor.order = append(extractor.order, spec.Key)
	}
	return extractor, nil
}

// Keys returns the keys collected after phase, in configuration order.
func (e *Extractor) Keys(phase Phase) []string {
	var keys []string
	for _, key := range e.order {
		if e.specs[key].CollectAfter == phase {
			keys = append(keys, key)
		}
	}
	return keys
}

// Spec returns the ChannelSpec for key.
func (e *Extractor) Spec(key string) (ChannelSpec, bool) {
	spec, ok := e.specs[key]
	return spec, ok
}

// Specs returns every spec in configuration order.
func (e *Extractor) Specs() []ChannelSpec {
	specs := make([]ChannelSpec, len(e.order))
	for i, key := range e.order {
		specs[i] = e.specs[key]
	}
	return specs
}

// Fetch reads one channel's current sample, applying expiry.
func (e *Extractor) Fetch(channel ChannelID) (Sample, error) {
	sample, ok := e.source.Current(channel)
	if !ok {
		return Sample{}, ErrMissingSample
	}
	if sample.Expired(e.clock.Now()) {
		return Sample{}, ErrExpiredSample
	}
	return sample, nil
}

type fetched struct {
	sample Sample
	err    error
}

// Extract evaluates keys and returns the values that could be
// extracted plus one Warning per key that could not. Each channel is
// read from the source at most once per call.
func (e *Extractor) Extract(keys []string) (map[string]any, []*Warning) {
	values := make(map[string]any, len(keys))
	samples := make(map[ChannelID]fetched)
	var warnings []*Warning

	for _, key := range keys {
		spec, ok := e.specs[key]
		if !ok {
			warnings = append(warnings, &Warning{Key: key, Err: ErrUnknownKey})
			continue
		}

		result, cached := samples[spec.Channel]
		if !cached {
			sample, err := e.Fetch(spec.Channel)
			result = fetched{sample: sample, err: err}
			samples[spec.Channel] = result
		}
		if result.err != nil {
			warnings = append(warnings, &Warning{Key: key, Channel: spec.Channel, Err: result.err})
			continue
		}

		value, err := e.evaluate(spec, result.sample)
		if err != nil {
			warnings = append(warnings, &Warning{Key: key, Channel: spec.Channel, Err: err})
			continue
		}
		values[key] = value
		e.logger.Debug("extracted key",
			"key", key,
			"channel", spec.Channel.String(),
			"rule", spec.Rule.String(),
		)
	}

	for _, warning := range warnings {
		e.logger.Warn("cannot extract key",
			"key", warning.Key,
			"channel", warning.Channel.String(),
			"error", warning.Err,
		)
	}
	return values, warnings
}

// evaluate applies one spec to its sample. A panic from a rule is
// converted into an error for that key.
func (e *Extractor) evaluate(spec ChannelSpec, sample Sample) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("extraction panicked: %v", recovered)
		}
	}()

	raw, ok := sample.Field(spec.ValueField)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, spec.ValueField)
	}
	value, err = spec.Rule.apply(raw, sample)
	if err != nil {
		return nil, err
	}
	if spec.Scale != nil {
		value, err = applyScale(value, *spec.Scale)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}
