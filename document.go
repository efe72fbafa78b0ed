// document.go: In-memory record buffer and section index
//
// A Document holds the records of a file in file order and, next to them,
// the position of every section header. The index is a plain sorted slice
// of buffer positions; every mutation shifts it with shiftIndex so that
// section ranges can be computed without rescanning the buffer.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"slices"

	"github.com/agilira/go-errors"
)

// Record is one stored line: either a Section header or an Entry.
type Record interface {
	record()
}

// Section is a section header record.
type Section struct {
	Name string
}

// Entry is a key/value record.
type Entry struct {
	Key   string
	Value string
}

func (Section) record() {}
func (Entry) record()   {}

// Document is the ordered record buffer plus its section index.
// It is not safe for concurrent mutation.
type Document struct {
	dialect  Dialect
	records  []Record
	sections []int
}

// NewDocument returns an empty document for the given dialect.
func NewDocument(d Dialect) *Document {
	return &Document{dialect: d}
}

// Dialect returns the dialect the document was built with.
func (doc *Document) Dialect() Dialect { return doc.dialect }

// Len returns the number of records in the buffer.
func (doc *Document) Len() int { return len(doc.records) }

// Records returns a copy of the record buffer.
func (doc *Document) Records() []Record {
	out := make([]Record, len(doc.records))
	copy(out, doc.records)
	return out
}

// SectionPositions returns a copy of the section index.
func (doc *Document) SectionPositions() []int {
	out := make([]int, len(doc.sections))
	copy(out, doc.sections)
	return out
}

// Clone returns an independent copy of the document.
func (doc *Document) Clone() *Document {
	return &Document{
		dialect:  doc.dialect,
		records:  doc.Records(),
		sections: doc.SectionPositions(),
	}
}

// shiftIndex adds delta to every position strictly greater than pivot.
func shiftIndex(index []int, pivot, delta int) {
	for i, pos := range index {
		if pos > pivot {
			index[i] = pos + delta
		}
	}
}

// appendSection appends a header at the end of the buffer and indexes it.
func (doc *Document) appendSection(name string) {
	doc.records = append(doc.records, Section{Name: name})
	doc.sections = append(doc.sections, len(doc.records)-1)
}

// insertRecord inserts rec at pos and shifts every later section down by one.
// owner is the position of the section the record belongs to.
func (doc *Document) insertRecord(pos, owner int, rec Record) {
	doc.records = slices.Insert(doc.records, pos, rec)
	shiftIndex(doc.sections, owner, 1)
}

// removeRange removes records [from, to) belonging to the section at owner
// and shifts every later section up by the removed count.
func (doc *Document) removeRange(from, to, owner int) {
	removed := to - from
	if removed <= 0 {
		return
	}
	doc.records = slices.Delete(doc.records, from, to)
	shiftIndex(doc.sections, owner, -removed)
}

// dropSectionAt removes the index entry pointing at pos.
func (doc *Document) dropSectionAt(pos int) {
	for i, p := range doc.sections {
		if p == pos {
			doc.sections = slices.Delete(doc.sections, i, i+1)
			return
		}
	}
}

// Check verifies the structural invariants between buffer and index:
// positions are strictly increasing, each addresses a Section record and
// every Section record is indexed.
func (doc *Document) Check() error {
	for i, pos := range doc.sections {
		if pos < 0 || pos >= len(doc.records) {
			return corruptIndex(fmt.Sprintf("index entry %d out of range: %d", i, pos))
		}
		if i > 0 && pos <= doc.sections[i-1] {
			return corruptIndex(fmt.Sprintf("index entry %d not increasing: %d after %d", i, pos, doc.sections[i-1]))
		}
		if _, ok := doc.records[pos].(Section); !ok {
			return corruptIndex(fmt.Sprintf("index entry %d does not address a section: %d", i, pos))
		}
	}

	indexed := 0
	for pos, rec := range doc.records {
		if _, ok := rec.(Section); ok {
			if indexed >= len(doc.sections) || doc.sections[indexed] != pos {
				return corruptIndex(fmt.Sprintf("section at %d is not indexed", pos))
			}
			indexed++
		}
	}
	return nil
}

// Duplicates lists repeated section names and repeated keys within a section,
// as "Section" and "Section.key". Loading keeps duplicates and lookups return
// the first match, so later copies are unreachable.
func (doc *Document) Duplicates() []string {
	var dups []string
	for i, start := range doc.sections {
		name := doc.records[start].(Section).Name
		for _, prev := range doc.sections[:i] {
			if doc.dialect.sameName(doc.records[prev].(Section).Name, name) {
				dups = append(dups, name)
				break
			}
		}

		end := doc.sectionEnd(i)
		for a := start + 1; a < end; a++ {
			key := doc.records[a].(Entry).Key
			for b := start + 1; b < a; b++ {
				if doc.dialect.sameName(doc.records[b].(Entry).Key, key) {
					dups = append(dups, name+"."+key)
					break
				}
			}
		}
	}
	return dups
}

// sectionEnd returns the exclusive end of the i-th indexed section.
func (doc *Document) sectionEnd(i int) int {
	if i+1 < len(doc.sections) {
		return doc.sections[i+1]
	}
	return len(doc.records)
}

func corruptIndex(msg string) error {
	return errors.New(ErrCodeCorruptIndex, msg)
}
