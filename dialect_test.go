// dialect_test.go: Tests for dialects and the line classifier
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDialect_Classify(t *testing.T) {
	ini := INIDialect()
	strict := StrictDialect()

	tests := []struct {
		name    string
		dialect Dialect
		line    string
		want    Line
	}{
		{"empty", ini, "", Line{Kind: LineBlank}},
		{"whitespace only", ini, "   \t", Line{Kind: LineBlank}},
		{"comment", ini, "; a comment", Line{Kind: LineComment}},
		{"indented comment", ini, "   ;x", Line{Kind: LineComment}},
		{"comment with brackets", ini, ";[Fake]", Line{Kind: LineComment}},
		{"section", ini, "[Network]", Line{Kind: LineSection, Name: "Network"}},
		{"section padded", ini, "  [ Network ]  ", Line{Kind: LineSection, Name: "Network"}},
		{"section with space", ini, "[Main Window]", Line{Kind: LineSection, Name: "Main Window"}},
		{"empty section", ini, "[]", Line{Kind: LineInvalid}},
		{"unterminated section", ini, "[Network", Line{Kind: LineInvalid}},
		{"section trailing text", ini, "[Network] extra", Line{Kind: LineInvalid}},
		{"section bad name", ini, "[Net/work]", Line{Kind: LineInvalid}},
		{"entry", ini, "Timeout=30", Line{Kind: LineEntry, Key: "Timeout", Value: "30"}},
		{"entry padded", ini, "  Timeout = 30  ", Line{Kind: LineEntry, Key: "Timeout", Value: "30"}},
		{"entry empty value", ini, "Timeout=", Line{Kind: LineEntry, Key: "Timeout", Value: ""}},
		{"entry split at first separator", ini, "expr=a=b", Line{Kind: LineEntry, Key: "expr", Value: "a=b"}},
		{"entry leading separator", ini, "=value", Line{Kind: LineInvalid}},
		{"entry bad key", ini, "time-out=30", Line{Kind: LineInvalid}},
		{"plain text", ini, "bad line", Line{Kind: LineInvalid}},
		{"strict underscore key", strict, "max_conns=5", Line{Kind: LineEntry, Key: "max_conns", Value: "5"}},
		{"strict rejects spaced section", strict, "[Main Window]", Line{Kind: LineInvalid}},
		{"strict rejects leading digit", strict, "1key=v", Line{Kind: LineInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dialect.Classify(tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestDialect_ClassifyWithoutTrim(t *testing.T) {
	d := INIDialect()
	d.Trim = false

	d.Identifiers = IdentifierStrict
	if got := d.Classify("key = value"); got.Kind != LineInvalid {
		t.Errorf("untrimmed key with trailing space should be invalid, got %v", got.Kind)
	}
	got := d.Classify("key= value ")
	if got.Kind != LineEntry || got.Value != " value " {
		t.Errorf("untrimmed value should be kept verbatim, got %+v", got)
	}
	if got := d.Classify("  "); got.Kind != LineInvalid {
		t.Errorf("whitespace is not blank without trimming, got %v", got.Kind)
	}
}

func TestDialect_CustomTokens(t *testing.T) {
	d := Dialect{
		SectionPrefix: "<",
		SectionSuffix: ">",
		Separator:     ":",
		Comment:       "#",
		Trim:          true,
		Identifiers:   IdentifierStrict,
		CaseSensitive: true,
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if d.Name() != "custom" {
		t.Errorf("Name() = %q, want custom", d.Name())
	}

	cases := map[string]LineKind{
		"<db>":         LineSection,
		"host: local":  LineEntry,
		"# note":       LineComment,
		"[db]":         LineInvalid,
		"host=local":   LineInvalid,
		"<db>trailing": LineInvalid,
	}
	for line, want := range cases {
		if got := d.Classify(line).Kind; got != want {
			t.Errorf("Classify(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestDialect_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Dialect)
	}{
		{"empty prefix", func(d *Dialect) { d.SectionPrefix = "" }},
		{"empty suffix", func(d *Dialect) { d.SectionSuffix = "" }},
		{"empty separator", func(d *Dialect) { d.Separator = "" }},
		{"empty comment", func(d *Dialect) { d.Comment = "" }},
		{"whitespace separator", func(d *Dialect) { d.Separator = " = " }},
		{"separator equals comment", func(d *Dialect) { d.Separator = ";" }},
		{"separator equals prefix", func(d *Dialect) { d.Separator = "[" }},
		{"comment equals prefix", func(d *Dialect) { d.Comment = "[" }},
		{"unknown identifiers", func(d *Dialect) { d.Identifiers = IdentifierPolicy(7) }},
	}

	if err := INIDialect().Validate(); err != nil {
		t.Fatalf("INIDialect().Validate() = %v", err)
	}
	if err := StrictDialect().Validate(); err != nil {
		t.Fatalf("StrictDialect().Validate() = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := INIDialect()
			tt.mutate(&d)
			if err := d.Validate(); !HasCode(err, ErrCodeInvalidConfig) {
				t.Errorf("expected %s, got %v", ErrCodeInvalidConfig, err)
			}
		})
	}
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name string
		want Dialect
		ok   bool
	}{
		{"", INIDialect(), true},
		{"ini", INIDialect(), true},
		{" INI ", INIDialect(), true},
		{"strict", StrictDialect(), true},
		{"toml", Dialect{}, false},
	}
	for _, tt := range tests {
		got, ok := DialectByName(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("DialectByName(%q) = %+v, %v", tt.name, got, ok)
		}
	}

	if INIDialect().Name() != "ini" || StrictDialect().Name() != "strict" {
		t.Errorf("preset names: %q, %q", INIDialect().Name(), StrictDialect().Name())
	}
}

func TestDialect_SameName(t *testing.T) {
	ini := INIDialect()
	if !ini.sameName("Network", "NETWORK") {
		t.Error("ini dialect should match names case-insensitively")
	}
	if !ini.sameName("ÄRGER", "ärger") {
		t.Error("ini dialect should fold non-ASCII letters")
	}
	strict := StrictDialect()
	if strict.sameName("Network", "network") {
		t.Error("strict dialect should match names case-sensitively")
	}
	if !strict.sameName("Network", "Network") {
		t.Error("identical names must match")
	}
}
