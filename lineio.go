// lineio.go: Encoded line input and atomic line output
//
// Files are read in one pass and written in one pass: the handle is held
// only for the duration of the bulk read or write and is closed on every
// path. Writes go to a temporary file in the same directory which is then
// renamed over the target.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"bufio"
	goerrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/agilira/go-errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineLength bounds a single line read from disk.
const maxLineLength = 16 * 1024 * 1024

// Line ending names accepted by Config.LineEnding.
const (
	LineEndingLF   = "lf"
	LineEndingCRLF = "crlf"
)

// textCodec pairs the decoder used on read with the encoder used on write.
// They differ for UTF-8: a BOM is always stripped on read but only written
// for "utf-8-bom".
type textCodec struct {
	name  string
	read  encoding.Encoding
	write encoding.Encoding
}

// lookupEncoding resolves an encoding name. Unknown names fall back to the
// IANA registry.
func lookupEncoding(name string) (textCodec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "utf-8", "utf8":
		return textCodec{name: "utf-8", read: unicode.UTF8BOM, write: unicode.UTF8}, nil
	case "utf-8-bom", "utf8-bom", "utf-8-sig":
		return textCodec{name: "utf-8-bom", read: unicode.UTF8BOM, write: unicode.UTF8BOM}, nil
	case "utf-16", "utf16":
		enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
		return textCodec{name: "utf-16", read: enc, write: enc}, nil
	case "utf-16le", "utf16le":
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		return textCodec{name: "utf-16le", read: enc, write: enc}, nil
	case "utf-16be", "utf16be":
		enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
		return textCodec{name: "utf-16be", read: enc, write: enc}, nil
	case "windows-1252", "cp1252":
		return textCodec{name: "windows-1252", read: charmap.Windows1252, write: charmap.Windows1252}, nil
	case "iso-8859-1", "latin1", "latin-1":
		return textCodec{name: "iso-8859-1", read: charmap.ISO8859_1, write: charmap.ISO8859_1}, nil
	case "iso-8859-15", "latin9":
		return textCodec{name: "iso-8859-15", read: charmap.ISO8859_15, write: charmap.ISO8859_15}, nil
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		return textCodec{}, errors.New(ErrCodeEncodingError,
			fmt.Sprintf("unsupported encoding %q", name)).
			WithContext("encoding", name)
	}
	return textCodec{name: key, read: enc, write: enc}, nil
}

// lineTerminator resolves a line ending name.
func lineTerminator(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LineEndingLF:
		return "\n", nil
	case LineEndingCRLF:
		return "\r\n", nil
	default:
		return "", errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported line ending %q (want lf or crlf)", name))
	}
}

// readLines reads and decodes every line of path. Both "\n" and "\r\n"
// terminators are accepted.
func readLines(path string, codec textCodec) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is supplied by the store owner
	if err != nil {
		return nil, openError(path, err)
	}
	defer func() { _ = f.Close() }()
	return scanLines(f, path, codec)
}

// scanLines decodes r line by line. Failures are classified by origin:
// the underlying read, an over-long line, or the decoder.
func scanLines(r io.Reader, path string, codec textCodec) ([]string, error) {
	src := &sourceReader{r: r}
	scanner := bufio.NewScanner(transform.NewReader(src, codec.read.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	err := scanner.Err()
	switch {
	case err == nil:
		return lines, nil
	case src.err != nil:
		return nil, errors.Wrap(src.err, ErrCodeIOError, "failed to read "+path).
			WithContext("path", path)
	case goerrors.Is(err, bufio.ErrTooLong):
		return nil, errors.Wrap(err, ErrCodeMalformedFile, fmt.Sprintf("line %d exceeds %d bytes", len(lines)+1, maxLineLength)).
			WithContext("path", path).
			WithContext("line", len(lines)+1)
	default:
		return nil, errors.Wrap(err, ErrCodeEncodingError, "failed to decode "+path).
			WithContext("path", path).
			WithContext("encoding", codec.name)
	}
}

// sourceReader keeps the first non-EOF error of r so read failures can be
// told apart from decoder failures.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// loadDocument reads and parses path in one pass.
func loadDocument(path string, codec textCodec, d Dialect, opts ParseOptions) (*Document, error) {
	lines, err := readLines(path, codec)
	if err != nil {
		return nil, err
	}
	return ParseWith(slices.Values(lines), d, opts)
}

// encodeLines joins lines with eol after each line and encodes the result.
func encodeLines(lines []string, codec textCodec, eol string) ([]byte, error) {
	text := joinLines(lines, eol)
	out, _, err := transform.Bytes(codec.write.NewEncoder(), []byte(text))
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeEncodingError,
			"content cannot be represented in "+codec.name).
			WithContext("encoding", codec.name)
	}
	return out, nil
}

// joinLines terminates every line with eol.
func joinLines(lines []string, eol string) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString(eol)
	}
	return b.String()
}

// atomicWrite writes data to a temporary file next to path and renames it
// over path, so readers never observe a half-written file.
func atomicWrite(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, "."+base+".tmp.*")
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create temp file").
			WithContext("path", path)
	}
	tempPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, ErrCodeIOError, "failed to write temp file").
			WithContext("path", tempPath)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, ErrCodeIOError, "failed to sync temp file").
			WithContext("path", tempPath)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return errors.Wrap(err, ErrCodeIOError, "failed to set file mode").
			WithContext("path", tempPath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to close temp file").
			WithContext("path", tempPath)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to rename temp file").
			WithContext("path", path)
	}
	return nil
}

func openError(path string, err error) error {
	if goerrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, ErrCodeFileNotFound, "file not found: "+path).
			WithContext("path", path)
	}
	return errors.Wrap(err, ErrCodeIOError, "failed to open "+path).
		WithContext("path", path)
}
