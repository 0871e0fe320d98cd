// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"math"
	"reflect"
)

// Normalize folds the numeric zoo a transport may deliver into the two
// kinds the rest of the service handles: every integer kind that fits
// becomes int64 and float32 becomes float64. Typed slices other than []byte
// become []any with normalized elements. Strings, bools, float64, and
// anything else pass through unchanged.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil, string, bool, int64, float64, []byte:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return v
		}
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return v
		}
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, element := range v {
			out[i] = Normalize(element)
		}
		return out
	}

	reflected := reflect.ValueOf(value)
	if reflected.Kind() == reflect.Slice || reflected.Kind() == reflect.Array {
		out := make([]any, reflected.Len())
		for i := range out {
			out[i] = Normalize(reflected.Index(i).Interface())
		}
		return out
	}
	return value
}

// asSequence returns value as a slice when it is one. Strings are not
// sequences.
func asSequence(value any) ([]any, bool) {
	sequence, ok := Normalize(value).([]any)
	return sequence, ok
}

// asFloat converts a normalized numeric value to float64.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// asInt converts a normalized integral value to int64. Floats with no
// fractional part are accepted since some controllers publish enum
// codes as doubles.
func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// applyScale multiplies a numeric scalar, or each numeric entry of a
// PerSensor map, by factor. Non-numeric per-sensor entries are kept.
func applyScale(value any, factor float64) (any, error) {
	switch v := value.(type) {
	case PerSensor:
		scaled := make(PerSensor, len(v))
		for sensor, entry := range v {
			if number, ok := asFloat(entry); ok {
				scaled[sensor] = number * factor
			} else {
				scaled[sensor] = entry
			}
		}
		return scaled, nil
	default:
		number, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: cannot scale %T", ErrRuleMismatch, value)
		}
		return number * factor, nil
	}
}
