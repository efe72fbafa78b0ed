// dialect.go: Format dialects and the line classifier
//
// A Dialect carries the tokens of the file grammar together with the
// identifier and case policies of a format variant. Classify is the only
// place where raw text is interpreted; everything else works on records.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"strings"

	"github.com/agilira/go-errors"
	"golang.org/x/text/cases"
)

// LineKind is the classification of a single line of text.
type LineKind int

const (
	LineInvalid LineKind = iota
	LineBlank
	LineComment
	LineSection
	LineEntry
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineComment:
		return "comment"
	case LineSection:
		return "section"
	case LineEntry:
		return "entry"
	default:
		return "invalid"
	}
}

// Line is the result of classifying one line. Name is set for sections,
// Key and Value for entries.
type Line struct {
	Kind  LineKind
	Name  string
	Key   string
	Value string
}

// Dialect describes one variant of the line format.
type Dialect struct {
	SectionPrefix string
	SectionSuffix string
	Separator     string
	Comment       string

	// Trim strips surrounding whitespace from lines, names, keys and values.
	Trim bool

	Identifiers   IdentifierPolicy
	CaseSensitive bool
}

// INIDialect returns the classic INI variant: loose identifiers, case-insensitive lookups.
func INIDialect() Dialect {
	return Dialect{
		SectionPrefix: "[",
		SectionSuffix: "]",
		Separator:     "=",
		Comment:       ";",
		Trim:          true,
		Identifiers:   IdentifierLoose,
		CaseSensitive: false,
	}
}

// StrictDialect returns the strict variant: ASCII identifiers, case-sensitive lookups.
func StrictDialect() Dialect {
	d := INIDialect()
	d.Identifiers = IdentifierStrict
	d.CaseSensitive = true
	return d
}

// DialectByName resolves "ini" or "strict" to a preset.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ini", "loose":
		return INIDialect(), true
	case "strict":
		return StrictDialect(), true
	default:
		return Dialect{}, false
	}
}

// Validate checks that the dialect tokens can describe an unambiguous grammar.
func (d Dialect) Validate() error {
	tokens := []struct{ name, value string }{
		{"section prefix", d.SectionPrefix},
		{"section suffix", d.SectionSuffix},
		{"separator", d.Separator},
		{"comment", d.Comment},
	}
	for _, tok := range tokens {
		if tok.value == "" {
			return errors.New(ErrCodeInvalidConfig, "dialect "+tok.name+" cannot be empty")
		}
		if strings.TrimSpace(tok.value) != tok.value || !ValidValue(tok.value) {
			return errors.New(ErrCodeInvalidConfig,
				fmt.Sprintf("dialect %s %q contains whitespace or control characters", tok.name, tok.value))
		}
	}
	if d.Separator == d.Comment || d.Separator == d.SectionPrefix {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("dialect separator %q collides with another token", d.Separator))
	}
	if d.Comment == d.SectionPrefix {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("dialect comment %q collides with the section prefix", d.Comment))
	}
	if d.Identifiers != IdentifierLoose && d.Identifiers != IdentifierStrict {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown identifier policy %d", int(d.Identifiers)))
	}
	return nil
}

// Name returns "ini" or "strict" when d equals a preset, "custom" otherwise.
func (d Dialect) Name() string {
	switch d {
	case INIDialect():
		return "ini"
	case StrictDialect():
		return "strict"
	default:
		return "custom"
	}
}

// Classify classifies one line. Checks run in order and the first match wins:
// blank, comment, section header, key/value entry, otherwise invalid.
func (d Dialect) Classify(line string) Line {
	if d.Trim {
		line = strings.TrimSpace(line)
	}
	if line == "" {
		return Line{Kind: LineBlank}
	}
	if strings.HasPrefix(line, d.Comment) {
		return Line{Kind: LineComment}
	}

	if strings.HasPrefix(line, d.SectionPrefix) {
		rest := line[len(d.SectionPrefix):]
		// the first suffix must close the line with at least one character inside
		if end := strings.Index(rest, d.SectionSuffix); end > 0 && end == len(rest)-len(d.SectionSuffix) {
			name := rest[:end]
			if d.Trim {
				name = strings.TrimSpace(name)
			}
			if name != "" && d.Identifiers.Valid(name) {
				return Line{Kind: LineSection, Name: name}
			}
			return Line{Kind: LineInvalid}
		}
	}

	if sep := strings.Index(line, d.Separator); sep > 0 {
		key, value := line[:sep], line[sep+len(d.Separator):]
		if d.Trim {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
		}
		if key != "" && d.Identifiers.Valid(key) {
			return Line{Kind: LineEntry, Key: key, Value: value}
		}
	}

	return Line{Kind: LineInvalid}
}

// sameName compares two identifiers under the dialect's case policy.
func (d Dialect) sameName(a, b string) bool {
	if d.CaseSensitive {
		return a == b
	}
	if a == b {
		return true
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

func (d Dialect) sectionHeader(name string) string {
	return d.SectionPrefix + name + d.SectionSuffix
}

func (d Dialect) entryLine(key, value string) string {
	return key + d.Separator + value
}
