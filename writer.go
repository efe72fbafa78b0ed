// writer.go: Mutations and serialization of a Document
//
// Every mutation validates its arguments before touching the buffer, so a
// failing call leaves records and index exactly as they were.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

// WriteKey sets key to value in section. A missing section is appended at
// the end of the buffer, an existing key is overwritten in place keeping its
// stored spelling, and a new key is appended at the end of its section.
// When the dialect trims, a value with leading or trailing whitespace is
// rejected since it could not be read back as written.
func (doc *Document) WriteKey(section, key, value string) error {
	if err := checkIdentifier(doc.dialect.Identifiers, "section", section); err != nil {
		return err
	}
	if err := checkIdentifier(doc.dialect.Identifiers, "key", key); err != nil {
		return err
	}
	if err := checkValue(key, value, doc.dialect.Trim); err != nil {
		return err
	}

	index, count, ok := doc.findRange(section)
	if !ok {
		doc.appendSection(section)
		doc.records = append(doc.records, Entry{Key: key, Value: value})
		return nil
	}

	if pos, found := doc.findKey(index, count, key); found {
		e := doc.records[pos].(Entry)
		e.Value = value
		doc.records[pos] = e
		return nil
	}

	doc.insertRecord(index+count, index, Entry{Key: key, Value: value})
	return nil
}

// DeleteKey removes key from section.
func (doc *Document) DeleteKey(section, key string) error {
	index, count, ok := doc.findRange(section)
	if !ok {
		return sectionNotFound(section)
	}
	pos, ok := doc.findKey(index, count, key)
	if !ok {
		return keyNotFound(section, key)
	}
	doc.removeRange(pos, pos+1, index)
	return nil
}

// ClearSection removes every entry of section, and its header too when
// removeHeader is set.
func (doc *Document) ClearSection(section string, removeHeader bool) error {
	index, count, ok := doc.findRange(section)
	if !ok {
		return sectionNotFound(section)
	}
	if removeHeader {
		doc.dropSectionAt(index)
		doc.removeRange(index, index+count, index)
		return nil
	}
	doc.removeRange(index+1, index+count, index)
	return nil
}

// Lines serializes the buffer. A blank line precedes every section header
// that is not the first record.
func (doc *Document) Lines() []string {
	lines := make([]string, 0, len(doc.records)+len(doc.sections))
	for i, rec := range doc.records {
		switch r := rec.(type) {
		case Section:
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, doc.dialect.sectionHeader(r.Name))
		case Entry:
			lines = append(lines, doc.dialect.entryLine(r.Key, r.Value))
		}
	}
	return lines
}

// String returns the serialized document with '\n' line endings.
func (doc *Document) String() string {
	return joinLines(doc.Lines(), "\n")
}
