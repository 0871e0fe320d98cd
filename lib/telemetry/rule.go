// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rule turns the raw value of a sample field into the value recorded
// for a key. Implementations are the tagged variants in this file; the
// set is closed.
type Rule interface {
	apply(value any, sample Sample) (any, error)
	String() string
}

// PerSensor is the result of a [PerSensorArray] rule: one value per
// sensor name, fanned out to that sensor's header extensions.
type PerSensor map[string]any

// Sensors returns the sensor names in sorted order.
func (p PerSensor) Sensors() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scalar passes the field value through unchanged.
type Scalar struct{}

func (Scalar) apply(value any, _ Sample) (any, error) { return value, nil }
func (Scalar) String() string                         { return "scalar" }

// FirstOfArray takes element 0 of a sequence. A string, or any other
// non-sequence value, passes through unchanged.
type FirstOfArray struct{}

func (FirstOfArray) apply(value any, _ Sample) (any, error) {
	sequence, ok := asSequence(value)
	if !ok {
		return value, nil
	}
	if len(sequence) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrRuleMismatch)
	}
	return sequence[0], nil
}

func (FirstOfArray) String() string { return "first" }

// IndexedArray takes element Index of a sequence.
type IndexedArray struct {
	Index int
}

func (r IndexedArray) apply(value any, _ Sample) (any, error) {
	sequence, ok := asSequence(value)
	if !ok {
		return nil, fmt.Errorf("%w: indexed rule on non-array %T", ErrRuleMismatch, value)
	}
	if r.Index < 0 || r.Index >= len(sequence) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrRuleMismatch, r.Index, len(sequence))
	}
	return sequence[r.Index], nil
}

func (r IndexedArray) String() string { return "indexed:" + strconv.Itoa(r.Index) }

// KeyedArray reads a list of names from NamesField, pairs each name with
// the element at the same position of the value field, and selects the
// element paired with Key. Both a packed string (split with
// SplitEscaped on Separator) and a sequence are accepted as values.
type KeyedArray struct {
	Separator  rune
	NamesField string
	Key        string
}

func (r KeyedArray) apply(value any, sample Sample) (any, error) {
	zipped, err := zipNamed(value, sample, r.NamesField, r.Separator)
	if err != nil {
		return nil, err
	}
	selected, ok := zipped[r.Key]
	if !ok {
		return nil, fmt.Errorf("%w: name %q not present in %s", ErrRuleMismatch, r.Key, r.NamesField)
	}
	return selected, nil
}

func (r KeyedArray) String() string {
	return fmt.Sprintf("keyed:%s[%s]", r.NamesField, r.Key)
}

// PerSensorArray is KeyedArray without the selection: the whole zipped
// map is returned as a PerSensor value.
type PerSensorArray struct {
	Separator  rune
	NamesField string
}

func (r PerSensorArray) apply(value any, sample Sample) (any, error) {
	return zipNamed(value, sample, r.NamesField, r.Separator)
}

func (r PerSensorArray) String() string { return "per-sensor:" + r.NamesField }

// EnumDecode maps an integer code to its symbolic name.
type EnumDecode struct {
	Table map[int64]string
}

func (r EnumDecode) apply(value any, _ Sample) (any, error) {
	code, ok := asInt(value)
	if !ok {
		return nil, fmt.Errorf("%w: enum code is %T, not an integer", ErrRuleMismatch, value)
	}
	name, ok := r.Table[code]
	if !ok {
		return nil, fmt.Errorf("%w: unknown enum code %d", ErrRuleMismatch, code)
	}
	return name, nil
}

func (r EnumDecode) String() string { return fmt.Sprintf("enum(%d)", len(r.Table)) }

// zipNamed pairs the names in sample[namesField] with the elements of
// value. Extra elements on either side are ignored.
func zipNamed(value any, sample Sample, namesField string, separator rune) (PerSensor, error) {
	rawNames, ok := sample.Field(namesField)
	if !ok {
		return nil, fmt.Errorf("%w: names field %q", ErrMissingField, namesField)
	}
	names, err := splitField(rawNames, separator)
	if err != nil {
		return nil, fmt.Errorf("names field %q: %w", namesField, err)
	}

	var elements []any
	if text, isString := value.(string); isString {
		for _, part := range SplitEscaped(text, separator) {
			elements = append(elements, part)
		}
	} else if sequence, isSequence := asSequence(value); isSequence {
		elements = sequence
	} else {
		return nil, fmt.Errorf("%w: keyed rule on %T", ErrRuleMismatch, value)
	}

	zipped := make(PerSensor, len(names))
	for i, name := range names {
		if i >= len(elements) {
			break
		}
		zipped[name] = elements[i]
	}
	return zipped, nil
}

func splitField(value any, separator rune) ([]string, error) {
	switch v := value.(type) {
	case string:
		return SplitEscaped(v, separator), nil
	case []any:
		names := make([]string, len(v))
		for i, element := range v {
			name, ok := element.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", ErrRuleMismatch, i, element)
			}
			names[i] = name
		}
		return names, nil
	default:
		return nil, fmt.Errorf("%w: names are %T", ErrRuleMismatch, value)
	}
}

// ParseRule resolves the configuration spelling of an extraction rule.
//
//	""  or "scalar"        Scalar
//	"first"                FirstOfArray
//	"indexed:N"            IndexedArray{N}
//	"keyed:NAMES:KEY"      KeyedArray (names field NAMES, selecting KEY)
//	"per-sensor:NAMES"     PerSensorArray
//
// EnumDecode carries a table and is built directly from configuration.
// The separator applies to keyed and per-sensor rules and defaults to
// ':' when zero.
func ParseRule(spec string, separator rune) (Rule, error) {
	if separator == 0 {
		separator = ':'
	}
	kind, argument, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "scalar":
		return Scalar{}, nil
	case "first":
		return FirstOfArray{}, nil
	case "indexed":
		index, err := strconv.Atoi(argument)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("rule %q: index must be a non-negative integer", spec)
		}
		return IndexedArray{Index: index}, nil
	case "keyed":
		names, key, ok := strings.Cut(argument, ":")
		if !ok || names == "" || key == "" {
			return nil, fmt.Errorf("rule %q: want keyed:NAMES_FIELD:KEY", spec)
		}
		return KeyedArray{Separator: separator, NamesField: names, Key: key}, nil
	case "per-sensor":
		if argument == "" {
			return nil, fmt.Errorf("rule %q: want per-sensor:NAMES_FIELD", spec)
		}
		return PerSensorArray{Separator: separator, NamesField: argument}, nil
	default:
		return nil, fmt.Errorf("unknown extraction rule %q", spec)
	}
}
