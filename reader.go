// reader.go: Lookups over the record buffer and section index
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

// findRange returns the buffer position of the first section named section
// and the number of records it spans, header included.
func (doc *Document) findRange(section string) (index, count int, ok bool) {
	for i, pos := range doc.sections {
		if doc.dialect.sameName(doc.records[pos].(Section).Name, section) {
			return pos, doc.sectionEnd(i) - pos, true
		}
	}
	return 0, 0, false
}

// findKey scans records[index:index+count] for an entry named key and
// returns its absolute position.
func (doc *Document) findKey(index, count int, key string) (int, bool) {
	for pos := index; pos < index+count; pos++ {
		if e, ok := doc.records[pos].(Entry); ok && doc.dialect.sameName(e.Key, key) {
			return pos, true
		}
	}
	return 0, false
}

// Value returns the value of key in section. A missing section is reported
// before a missing key.
func (doc *Document) Value(section, key string) (string, error) {
	index, count, ok := doc.findRange(section)
	if !ok {
		return "", sectionNotFound(section)
	}
	pos, ok := doc.findKey(index, count, key)
	if !ok {
		return "", keyNotFound(section, key)
	}
	return doc.records[pos].(Entry).Value, nil
}

// SectionNames returns the section names in file order, duplicates included.
func (doc *Document) SectionNames() []string {
	names := make([]string, 0, len(doc.sections))
	for _, pos := range doc.sections {
		names = append(names, doc.records[pos].(Section).Name)
	}
	return names
}

// Entries returns the entries of section in file order.
func (doc *Document) Entries(section string) ([]Entry, error) {
	index, count, ok := doc.findRange(section)
	if !ok {
		return nil, sectionNotFound(section)
	}
	entries := make([]Entry, 0, count-1)
	for _, rec := range doc.records[index+1 : index+count] {
		entries = append(entries, rec.(Entry))
	}
	return entries, nil
}

// HasSection reports whether section exists.
func (doc *Document) HasSection(section string) bool {
	_, _, ok := doc.findRange(section)
	return ok
}

// HasKey reports whether key exists in section.
func (doc *Document) HasKey(section, key string) bool {
	index, count, ok := doc.findRange(section)
	if !ok {
		return false
	}
	_, ok = doc.findKey(index, count, key)
	return ok
}

// SectionPosition returns the buffer position of the header of section.
func (doc *Document) SectionPosition(section string) (int, bool) {
	index, _, ok := doc.findRange(section)
	return index, ok
}
