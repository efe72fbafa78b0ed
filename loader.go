// loader.go: Whole-file validation and loading of line sequences
//
// Loading is all-or-nothing: a single line that does not classify aborts the
// load and no partial document is returned.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"iter"
	"strings"

	"github.com/agilira/go-errors"
)

// ParseOptions tunes the loader.
type ParseOptions struct {
	// RejectDuplicates fails the load on a repeated section name or a
	// repeated key within one section. By default both are kept and
	// lookups return the first match.
	RejectDuplicates bool
}

// Parse classifies every line and builds a Document.
func Parse(lines iter.Seq[string], d Dialect) (*Document, error) {
	return ParseWith(lines, d, ParseOptions{})
}

// ParseWith is Parse with explicit options.
func ParseWith(lines iter.Seq[string], d Dialect, opts ParseOptions) (*Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	doc := NewDocument(d)
	n := 0
	for raw := range lines {
		n++
		line := d.Classify(raw)
		switch line.Kind {
		case LineBlank, LineComment:
			continue

		case LineSection:
			if opts.RejectDuplicates {
				if _, _, found := doc.findRange(line.Name); found {
					return nil, duplicateAt(ErrCodeDuplicateSection, n, raw, "duplicate section "+line.Name)
				}
			}
			doc.appendSection(line.Name)

		case LineEntry:
			if opts.RejectDuplicates && len(doc.sections) > 0 {
				last := doc.sections[len(doc.sections)-1]
				if _, found := doc.findKey(last, len(doc.records)-last, line.Key); found {
					return nil, duplicateAt(ErrCodeDuplicateKey, n, raw, "duplicate key "+line.Key)
				}
			}
			doc.records = append(doc.records, Entry{Key: line.Key, Value: line.Value})

		default:
			return nil, errors.New(ErrCodeMalformedFile,
				fmt.Sprintf("line %d is neither a section header, an entry, a comment nor blank", n)).
				WithContext("line", n).
				WithContext("content", raw)
		}
	}
	return doc, nil
}

// ParseString parses s split on '\n'; a trailing '\r' on each line is dropped.
func ParseString(s string, d Dialect) (*Document, error) {
	return Parse(splitLines(s), d)
}

// Validate runs the loader over lines and discards the result.
func Validate(lines iter.Seq[string], d Dialect) error {
	_, err := Parse(lines, d)
	return err
}

func splitLines(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(s) {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if !yield(line) {
				return
			}
		}
	}
}

func duplicateAt(code string, n int, raw, msg string) error {
	return errors.New(errors.ErrorCode(code), fmt.Sprintf("line %d: %s", n, msg)).
		WithContext("line", n).
		WithContext("content", raw)
}
