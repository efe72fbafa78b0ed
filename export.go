// export.go: YAML export and import of documents
//
// A document maps to a YAML mapping of sections, each a mapping of string
// values. Order is preserved both ways by working on yaml.Node trees.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// ExportYAML renders doc as YAML. Documents with duplicate sections or keys,
// or with entries before the first section, cannot be represented and are
// rejected.
func ExportYAML(doc *Document) ([]byte, error) {
	if dups := doc.Duplicates(); len(dups) > 0 {
		return nil, errors.New(ErrCodeExportError,
			"duplicate names cannot be exported: "+strings.Join(dups, ", "))
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	var current *yaml.Node
	for i, rec := range doc.records {
		switch r := rec.(type) {
		case Section:
			current = &yaml.Node{Kind: yaml.MappingNode}
			root.Content = append(root.Content, scalarNode(r.Name), current)
		case Entry:
			if current == nil {
				return nil, errors.New(ErrCodeExportError,
					fmt.Sprintf("entry %q at record %d precedes the first section", r.Key, i))
			}
			current.Content = append(current.Content, scalarNode(r.Key), scalarNode(r.Value))
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, errors.Wrap(err, ErrCodeExportError, "failed to encode YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, ErrCodeExportError, "failed to encode YAML")
	}
	return buf.Bytes(), nil
}

// ImportYAML builds a document from YAML produced by ExportYAML or written
// by hand in the same shape. Every name and value goes through the same
// checks as WriteKey.
func ImportYAML(data []byte, d Dialect) (*Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, ErrCodeExportError, "failed to decode YAML")
	}

	doc := NewDocument(d)
	if len(root.Content) == 0 {
		return doc, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, importError(top, "top level must be a mapping of sections")
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		nameNode, body := top.Content[i], top.Content[i+1]
		if nameNode.Kind != yaml.ScalarNode {
			return nil, importError(nameNode, "section name must be a scalar")
		}
		section := nameNode.Value
		if err := checkIdentifier(d.Identifiers, "section", section); err != nil {
			return nil, errors.Wrap(err, ErrCodeExportError, "invalid section in YAML").
				WithContext("line", nameNode.Line)
		}
		if doc.HasSection(section) {
			return nil, importError(nameNode, "duplicate section "+section)
		}
		doc.appendSection(section)

		if isNull(body) {
			continue
		}
		if body.Kind != yaml.MappingNode {
			return nil, importError(body, "section "+section+" must be a mapping")
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			keyNode, valueNode := body.Content[j], body.Content[j+1]
			if keyNode.Kind != yaml.ScalarNode || valueNode.Kind != yaml.ScalarNode {
				return nil, importError(keyNode, "entries must be scalar key/value pairs")
			}
			if doc.HasKey(section, keyNode.Value) {
				return nil, importError(keyNode, "duplicate key "+keyNode.Value)
			}
			value := valueNode.Value
			if isNull(valueNode) {
				value = ""
			}
			if err := doc.WriteKey(section, keyNode.Value, value); err != nil {
				return nil, errors.Wrap(err, ErrCodeExportError, "invalid entry in YAML").
					WithContext("line", keyNode.Line)
			}
		}
	}
	return doc, nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func importError(n *yaml.Node, msg string) error {
	return errors.New(ErrCodeExportError, fmt.Sprintf("line %d: %s", n.Line, msg)).
		WithContext("line", n.Line)
}
