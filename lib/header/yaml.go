// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package header

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The flat-text form is built as a yaml.Node tree rather than from Go
// maps so that extension order is kept and every value carries its
// tag: a float that happens to be integral is written as "2.0", not
// "2", and a string that looks like a number is quoted.

func encodeYAML(doc *Document) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, extension := range doc.extensions {
		sequence := &yaml.Node{Kind: yaml.SequenceNode}
		for _, record := range extension.records {
			value, err := scalarNode(record.Value)
			if err != nil {
				return nil, fmt.Errorf("extension %s keyword %s: %w", extension.name, record.Keyword, err)
			}
			sequence.Content = append(sequence.Content, &yaml.Node{
				Kind: yaml.MappingNode,
				Content: []*yaml.Node{
					stringNode("keyword"), stringNode(record.Keyword),
					stringNode("value"), value,
					stringNode("comment"), stringNode(record.Comment),
				},
			})
		}
		root.Content = append(root.Content, stringNode(extension.name), sequence)
	}

	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return nil, fmt.Errorf("encoding yaml header: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml header: %w", err)
	}
	return buffer.Bytes(), nil
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func scalarNode(value any) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.ScalarNode}
	switch v := value.(type) {
	case nil:
		node.Tag, node.Value = "!!null", "null"
	case bool:
		node.Tag, node.Value = "!!bool", strconv.FormatBool(v)
	case int64:
		node.Tag, node.Value = "!!int", strconv.FormatInt(v, 10)
	case float64:
		node.Tag, node.Value = "!!float", yamlFloat(v)
	case string:
		node.Tag, node.Value = "!!str", v
	default:
		return nil, fmt.Errorf("type %T: %w", value, ErrUnencodableValue)
	}
	return node, nil
}

func yamlFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ".nan"
	case math.IsInf(v, 1):
		return ".inf"
	case math.IsInf(v, -1):
		return "-.inf"
	}
	text := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	return text
}

func decodeYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedHeader)
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must map extension names to record lists", ErrMalformedHeader)
	}

	doc := NewDocument()
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		list := mapping.Content[i+1]
		var records []Record
		switch {
		case list.Kind == yaml.SequenceNode:
			for _, item := range list.Content {
				record, err := decodeRecord(item)
				if err != nil {
					return nil, fmt.Errorf("extension %s line %d: %w", name, item.Line, err)
				}
				records = append(records, record)
			}
		case list.ShortTag() == "!!null":
		default:
			return nil, fmt.Errorf("%w: extension %s is not a list", ErrMalformedHeader, name)
		}
		extension, err := NewExtension(name, records)
		if err != nil {
			return nil, err
		}
		if err := doc.Append(extension); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decodeRecord(node *yaml.Node) (Record, error) {
	if node.Kind != yaml.MappingNode {
		return Record{}, fmt.Errorf("%w: record is not a mapping", ErrMalformedHeader)
	}
	var record Record
	for i := 0; i+1 < len(node.Content); i += 2 {
		field, valueNode := node.Content[i].Value, node.Content[i+1]
		switch field {
		case "keyword":
			record.Keyword = valueNode.Value
		case "comment":
			if valueNode.ShortTag() != "!!null" {
				record.Comment = valueNode.Value
			}
		case "value":
			value, err := scalarValue(valueNode)
			if err != nil {
				return Record{}, err
			}
			record.Value = value
		default:
			return Record{}, fmt.Errorf("%w: unknown record field %q", ErrMalformedHeader, field)
		}
	}
	if record.Keyword == "" {
		return Record{}, fmt.Errorf("%w: record without keyword", ErrMalformedHeader)
	}
	return record, nil
}

// scalarValue decodes a value node according to its tag.
func scalarValue(node *yaml.Node) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: value must be a scalar", ErrMalformedHeader)
	}
	switch tag := node.ShortTag(); tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		var value bool
		err := node.Decode(&value)
		return value, err
	case "!!int":
		var value int64
		err := node.Decode(&value)
		return value, err
	case "!!float":
		var value float64
		err := node.Decode(&value)
		return value, err
	case "!!str", "!!timestamp":
		return node.Value, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value tag %s", ErrMalformedHeader, tag)
	}
}
