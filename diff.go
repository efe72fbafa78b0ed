// diff.go: Line diffs between serialized documents
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp is the kind of a diff line.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// DiffLines computes a line-level diff from one line sequence to another.
// Each distinct line is mapped to a single rune so the character differ
// works on whole lines.
func DiffLines(from, to []string) []DiffLine {
	symbols := map[string]rune{}
	var table []string
	encode := func(lines []string) []rune {
		out := make([]rune, len(lines))
		for i, line := range lines {
			r, ok := symbols[line]
			if !ok {
				r = rune(0x10000 + len(table))
				symbols[line] = r
				table = append(table, line)
			}
			out[i] = r
		}
		return out
	}
	fromRunes := encode(from)
	toRunes := encode(to)

	diffCfg := diffpatch.New()
	diffs := diffCfg.DiffMainRunes(fromRunes, toRunes, false)

	var out []DiffLine
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffpatch.DiffInsert:
			op = DiffInsert
		case diffpatch.DiffDelete:
			op = DiffDelete
		}
		for _, r := range d.Text {
			out = append(out, DiffLine{Op: op, Text: table[r-0x10000]})
		}
	}
	return out
}

// HasDifferences reports whether any line was inserted or deleted.
func HasDifferences(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Op != DiffEqual {
			return true
		}
	}
	return false
}

// FormatDiff renders a diff with "+", "-" and " " prefixes, one line each.
func FormatDiff(lines []DiffLine) string {
	var b strings.Builder
	for _, l := range lines {
		switch l.Op {
		case DiffInsert:
			b.WriteString("+")
		case DiffDelete:
			b.WriteString("-")
		default:
			b.WriteString(" ")
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}
