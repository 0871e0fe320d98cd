// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownExtension is returned when an operation names an
	// extension the document does not have.
	ErrUnknownExtension = errors.New("unknown header extension")

	// ErrDuplicateKeyword is returned when an extension would hold the
	// same keyword twice.
	ErrDuplicateKeyword = errors.New("duplicate keyword")
)

// Record is one header entry. Value is one of nil, bool, int64,
// float64, or string.
type Record struct {
	Keyword string
	Value   any
	Comment string
}

// Extension is an ordered list of records with unique keywords. The
// order is the serialization order.
type Extension struct {
	name    string
	records []Record
	index   map[string]int
}

// NewExtension builds an extension from records, normalizing values.
func NewExtension(name string, records []Record) (*Extension, error) {
	extension := &Extension{
		name:    name,
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, record := range records {
		if err := extension.append(record); err != nil {
			return nil, err
		}
	}
	return extension, nil
}

func (e *Extension) append(record Record) error {
	if record.Keyword == "" {
		return fmt.Errorf("extension %s: empty keyword", e.name)
	}
	if _, exists := e.index[record.Keyword]; exists {
		return fmt.Errorf("extension %s: %w %s", e.name, ErrDuplicateKeyword, record.Keyword)
	}
	value, ok := normalizeValue(record.Value)
	if !ok {
		return fmt.Errorf("extension %s: keyword %s has unsupported value type %T", e.name, record.Keyword, record.Value)
	}
	record.Value = value
	e.index[record.Keyword] = len(e.records)
	e.records = append(e.records, record)
	return nil
}

// Name returns the extension name.
func (e *Extension) Name() string { return e.name }

// Len returns the number of records.
func (e *Extension) Len() int { return len(e.records) }

// Records returns a copy of the records in order.
func (e *Extension) Records() []Record {
	return append([]Record(nil), e.records...)
}

// Get returns the record for keyword.
func (e *Extension) Get(keyword string) (Record, bool) {
	position, ok := e.index[keyword]
	if !ok {
		return Record{}, false
	}
	return e.records[position], true
}

// Has reports whether keyword is part of the extension.
func (e *Extension) Has(keyword string) bool {
	_, ok := e.index[keyword]
	return ok
}

// set replaces the value of an existing keyword. It reports whether
// the record exists and the value has a supported type.
func (e *Extension) set(keyword string, value any) bool {
	position, ok := e.index[keyword]
	if !ok {
		return false
	}
	normalized, ok := normalizeValue(value)
	if !ok {
		return false
	}
	e.records[position].Value = normalized
	return true
}

func (e *Extension) clone(name string) *Extension {
	copied := &Extension{
		name:    name,
		records: append([]Record(nil), e.records...),
		index:   make(map[string]int, len(e.index)),
	}
	for keyword, position := range e.index {
		copied.index[keyword] = position
	}
	return copied
}

// Document is the header of one image: ordered extensions, each an
// ordered record list.
type Document struct {
	extensions []*Extension
	index      map[string]int

	// sensors and prefix are the instantiation layout; unset for
	// decoded documents.
	sensors []Sensor
	prefix  string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// Append adds an extension at the end of the document.
func (d *Document) Append(extension *Extension) error {
	if _, exists := d.index[extension.name]; exists {
		return fmt.Errorf("duplicate extension %s", extension.name)
	}
	d.index[extension.name] = len(d.extensions)
	d.extensions = append(d.extensions, extension)
	return nil
}

// Extension returns the named extension.
func (d *Document) Extension(name string) (*Extension, bool) {
	position, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.extensions[position], true
}

// Extensions returns the extensions in document order.
func (d *Document) Extensions() []*Extension {
	return append([]*Extension(nil), d.extensions...)
}

// Names returns the extension names in document order.
func (d *Document) Names() []string {
	names := make([]string, len(d.extensions))
	for i, extension := range d.extensions {
		names[i] = extension.name
	}
	return names
}

// Sensors returns the sensors the document was instantiated for.
func (d *Document) Sensors() []Sensor {
	return append([]Sensor(nil), d.sensors...)
}

// UpdateRecord replaces the value of keyword in extension. Keywords the
// extension's template does not define, unknown extensions, and values
// of unsupported types leave the document unchanged; the result reports
// whether the value was written.
func (d *Document) UpdateRecord(keyword string, value any, extension string) bool {
	target, ok := d.Extension(extension)
	if !ok {
		return false
	}
	return target.set(keyword, value)
}

// Value returns the value of keyword in extension.
func (d *Document) Value(keyword, extension string) (any, bool) {
	target, ok := d.Extension(extension)
	if !ok {
		return nil, false
	}
	record, ok := target.Get(keyword)
	return record.Value, ok
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	copied := &Document{
		extensions: make([]*Extension, len(d.extensions)),
		index:      make(map[string]int, len(d.index)),
		sensors:    append([]Sensor(nil), d.sensors...),
		prefix:     d.prefix,
	}
	for i, extension := range d.extensions {
		copied.extensions[i] = extension.clone(extension.name)
		copied.index[extension.name] = i
	}
	return copied
}

// normalizeValue folds Go numeric kinds into int64 and float64.
func normalizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil, bool, int64, float64, string:
		return v, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case float32:
		return float64(v), true
	default:
		return nil, false
	}
}
