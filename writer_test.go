// writer_test.go: Tests for document mutations and serialization
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
)

func TestScenarios(t *testing.T) {
	const text = "[A]\nx=1\n[B]\ny=2"

	t.Run("A_load_and_read", func(t *testing.T) {
		doc := mustParse(t, text)
		if diff := cmp.Diff([]string{"A", "B"}, doc.SectionNames()); diff != "" {
			t.Errorf("SectionNames() mismatch:\n%s", diff)
		}
		if v, err := doc.Value("B", "y"); err != nil || v != "2" {
			t.Errorf("Value(B, y) = %q, %v", v, err)
		}
	})

	t.Run("B_insert_shifts_later_sections", func(t *testing.T) {
		doc := mustParse(t, text)
		before, _, _ := doc.findRange("B")

		if err := doc.WriteKey("A", "z", "9"); err != nil {
			t.Fatal(err)
		}
		if v, err := doc.Value("B", "y"); err != nil || v != "2" {
			t.Errorf("Value(B, y) = %q, %v", v, err)
		}
		after, _, _ := doc.findRange("B")
		if after != before+1 {
			t.Errorf("section B moved from %d to %d, want +1", before, after)
		}
		mustCheck(t, doc)
	})

	t.Run("C_new_section_appended", func(t *testing.T) {
		doc := mustParse(t, text)
		if err := doc.WriteKey("C", "k", "v"); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"A", "B", "C"}, doc.SectionNames()); diff != "" {
			t.Errorf("SectionNames() mismatch:\n%s", diff)
		}
		recs := doc.Records()
		if diff := cmp.Diff([]Record{Section{"C"}, Entry{"k", "v"}}, recs[len(recs)-2:]); diff != "" {
			t.Errorf("new section should be at the end:\n%s", diff)
		}
		mustCheck(t, doc)
	})

	t.Run("D_malformed_file", func(t *testing.T) {
		doc, err := ParseString("[A]\nbad line", INIDialect())
		if !HasCode(err, ErrCodeMalformedFile) {
			t.Fatalf("expected %s, got %v", ErrCodeMalformedFile, err)
		}
		if doc != nil {
			t.Error("no document may be returned")
		}
	})

	t.Run("E_delete_missing_key", func(t *testing.T) {
		doc := mustParse(t, text)
		before := doc.Lines()
		if err := doc.DeleteKey("A", "nonexistent"); !HasCode(err, ErrCodeKeyNotFound) {
			t.Fatalf("expected %s, got %v", ErrCodeKeyNotFound, err)
		}
		if diff := cmp.Diff(before, doc.Lines()); diff != "" {
			t.Errorf("buffer changed:\n%s", diff)
		}
	})
}

func TestWriteKey_IdempotentOverwrite(t *testing.T) {
	doc := mustParse(t, "[A]\nx=1\n[B]\ny=2")

	if err := doc.WriteKey("A", "x", "5"); err != nil {
		t.Fatal(err)
	}
	n := doc.Len()
	index := doc.SectionPositions()
	if err := doc.WriteKey("A", "x", "5"); err != nil {
		t.Fatal(err)
	}
	if doc.Len() != n {
		t.Errorf("second identical write changed length: %d -> %d", n, doc.Len())
	}
	if diff := cmp.Diff(index, doc.SectionPositions()); diff != "" {
		t.Errorf("overwrite moved sections:\n%s", diff)
	}
}

func TestWriteKey_OverwriteKeepsStoredSpelling(t *testing.T) {
	doc := mustParse(t, "[Server]\nPort=80")
	if err := doc.WriteKey("SERVER", "port", "81"); err != nil {
		t.Fatal(err)
	}
	want := []string{"[Server]", "Port=81"}
	if diff := cmp.Diff(want, doc.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteKey_InsertDoesNotDisturbEarlierSections(t *testing.T) {
	doc := mustParse(t, "[A]\na=1\n[B]\nb=1\n[C]\nc=1\n[D]")
	before := doc.SectionPositions()

	if err := doc.WriteKey("C", "new", "v"); err != nil {
		t.Fatal(err)
	}
	after := doc.SectionPositions()
	for i := 0; i <= 2; i++ {
		if after[i] != before[i] {
			t.Errorf("section %d moved from %d to %d", i, before[i], after[i])
		}
	}
	if after[3] != before[3]+1 {
		t.Errorf("section D should move by one: %d -> %d", before[3], after[3])
	}

	entries, _ := doc.Entries("C")
	if diff := cmp.Diff([]Entry{{"c", "1"}, {"new", "v"}}, entries); diff != "" {
		t.Errorf("new key should be appended to its section:\n%s", diff)
	}
}

func TestWriteKey_RejectsBeforeMutating(t *testing.T) {
	tests := []struct {
		name    string
		section string
		key     string
		value   string
		code    string
	}{
		{"empty section", "", "k", "v", ErrCodeInvalidIdentifier},
		{"empty key", "A", "", "v", ErrCodeInvalidIdentifier},
		{"bad section", "A/B", "k", "v", ErrCodeInvalidIdentifier},
		{"bad key", "A", "k-1", "v", ErrCodeInvalidIdentifier},
		{"padded key", "A", " k", "v", ErrCodeInvalidIdentifier},
		{"newline value", "A", "k", "two\nlines", ErrCodeInvalidValue},
		{"tab value", "A", "k", "a\tb", ErrCodeInvalidValue},
		{"leading space value", "A", "k", " v", ErrCodeInvalidValue},
		{"trailing space value", "A", "k", "v ", ErrCodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, "[A]\nx=1")
			before := doc.Lines()
			err := doc.WriteKey(tt.section, tt.key, tt.value)
			if !HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if diff := cmp.Diff(before, doc.Lines()); diff != "" {
				t.Errorf("rejected write mutated the buffer:\n%s", diff)
			}
		})
	}
}

func TestWriteKey_PaddedValueSurvivesReloadWithoutTrim(t *testing.T) {
	d := INIDialect()
	d.Trim = false
	doc := NewDocument(d)
	if err := doc.WriteKey("A", "k", " v "); err != nil {
		t.Fatal(err)
	}
	reloaded, err := ParseString(doc.String(), d)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := reloaded.Value("A", "k"); err != nil || v != " v " {
		t.Errorf("Value(A, k) = %q, %v", v, err)
	}
}

func TestDeleteKey(t *testing.T) {
	doc := mustParse(t, "[A]\nx=1\ny=2\n[B]\nz=3")

	if err := doc.DeleteKey("a", "X"); err != nil {
		t.Fatal(err)
	}
	if doc.HasKey("A", "x") {
		t.Error("key still present")
	}
	if pos, _ := doc.SectionPosition("B"); pos != 2 {
		t.Errorf("section B should move up to 2, got %d", pos)
	}
	if v, _ := doc.Value("B", "z"); v != "3" {
		t.Errorf("Value(B, z) = %q", v)
	}
	if err := doc.DeleteKey("Nope", "x"); !HasCode(err, ErrCodeSectionNotFound) {
		t.Errorf("expected %s, got %v", ErrCodeSectionNotFound, err)
	}
	mustCheck(t, doc)
}

func TestClearSection(t *testing.T) {
	const text = "[A]\na=1\n[B]\nb=1\nb2=2\n[C]\nc=1"

	t.Run("keep header", func(t *testing.T) {
		doc := mustParse(t, text)
		if err := doc.ClearSection("B", false); err != nil {
			t.Fatal(err)
		}
		want := []Record{Section{"A"}, Entry{"a", "1"}, Section{"B"}, Section{"C"}, Entry{"c", "1"}}
		if diff := cmp.Diff(want, doc.Records()); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{0, 2, 3}, doc.SectionPositions()); diff != "" {
			t.Errorf("index mismatch:\n%s", diff)
		}
		mustCheck(t, doc)
	})

	t.Run("remove header", func(t *testing.T) {
		doc := mustParse(t, text)
		if err := doc.ClearSection("B", true); err != nil {
			t.Fatal(err)
		}
		want := []Record{Section{"A"}, Entry{"a", "1"}, Section{"C"}, Entry{"c", "1"}}
		if diff := cmp.Diff(want, doc.Records()); diff != "" {
			t.Errorf("records mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{0, 2}, doc.SectionPositions()); diff != "" {
			t.Errorf("index mismatch:\n%s", diff)
		}
		mustCheck(t, doc)
	})

	t.Run("remove last section", func(t *testing.T) {
		doc := mustParse(t, text)
		if err := doc.ClearSection("C", true); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"A", "B"}, doc.SectionNames()); diff != "" {
			t.Errorf("SectionNames() mismatch:\n%s", diff)
		}
		mustCheck(t, doc)
	})

	t.Run("missing section", func(t *testing.T) {
		doc := mustParse(t, text)
		if err := doc.ClearSection("Z", true); !HasCode(err, ErrCodeSectionNotFound) {
			t.Errorf("expected %s, got %v", ErrCodeSectionNotFound, err)
		}
	})

	t.Run("duplicate removes first only", func(t *testing.T) {
		doc := mustParse(t, "[A]\nx=1\n[A]\nx=2")
		if err := doc.ClearSection("A", true); err != nil {
			t.Fatal(err)
		}
		if v, _ := doc.Value("A", "x"); v != "2" {
			t.Errorf("second copy should become reachable, got %q", v)
		}
		mustCheck(t, doc)
	})
}

func TestLines_BlankLineBeforeLaterSections(t *testing.T) {
	doc := mustParse(t, "[A]\nx=1\n[B]\n[C]\ny=2")
	want := []string{"[A]", "x=1", "", "[B]", "", "[C]", "y=2"}
	if diff := cmp.Diff(want, doc.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
	if got := doc.String(); got != strings.Join(want, "\n")+"\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestLines_Golden(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		build   func(*Document) error
	}{
		{
			name:    "ini_document",
			dialect: INIDialect(),
			build: func(doc *Document) error {
				for _, kv := range [][3]string{
					{"Network", "Timeout", "30"},
					{"Network", "Host", "example.org"},
					{"Display", "Width", "800"},
					{"Display", "Title", "Hello = World"},
					{"Network", "Retries", "3"},
				} {
					if err := doc.WriteKey(kv[0], kv[1], kv[2]); err != nil {
						return err
					}
				}
				return doc.DeleteKey("Network", "Host")
			},
		},
		{
			name: "custom_dialect",
			dialect: Dialect{
				SectionPrefix: "<",
				SectionSuffix: ">",
				Separator:     ":",
				Comment:       "#",
				Trim:          true,
				Identifiers:   IdentifierStrict,
				CaseSensitive: true,
			},
			build: func(doc *Document) error {
				if err := doc.WriteKey("database", "host", "db.local"); err != nil {
					return err
				}
				if err := doc.WriteKey("database", "max_conns", "20"); err != nil {
					return err
				}
				return doc.WriteKey("cache", "ttl", "5m")
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewDocument(tt.dialect)
			if err := tt.build(doc); err != nil {
				t.Fatal(err)
			}
			g.Assert(t, tt.name, []byte(doc.String()))

			reloaded, err := Parse(slices.Values(doc.Lines()), tt.dialect)
			if err != nil {
				t.Fatalf("golden output does not reload: %v", err)
			}
			if diff := cmp.Diff(doc.Records(), reloaded.Records()); diff != "" {
				t.Errorf("reload mismatch:\n%s", diff)
			}
		})
	}
}
