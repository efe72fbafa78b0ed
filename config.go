// config.go: Store configuration for Hestia
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"log"
	"os"
	"time"
)

// Config controls how a Store reads, interprets and writes its file.
type Config struct {
	// Dialect is the line grammar. The zero value selects INIDialect.
	Dialect Dialect `json:"dialect"`

	// Encoding names the file's text encoding (utf-8, utf-8-bom, utf-16,
	// utf-16le, utf-16be, windows-1252, iso-8859-1, iso-8859-15 or any
	// IANA name). Empty means utf-8.
	Encoding string `json:"encoding"`

	// LineEnding is "lf" or "crlf" and applies on save only.
	LineEnding string `json:"line_ending"`

	// FileMode is applied to files written by Save and SaveAs.
	FileMode os.FileMode `json:"file_mode"`

	// RejectDuplicates fails loads containing a repeated section name or a
	// repeated key within one section.
	RejectDuplicates bool `json:"reject_duplicates"`

	// PollInterval is used by Watcher.
	PollInterval time.Duration `json:"poll_interval"`

	Audit AuditConfig `json:"audit"`

	// ErrorHandler receives non-fatal errors such as audit flush failures.
	ErrorHandler func(error) `json:"-"`
}

// WithDefaults applies sensible defaults to the configuration
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.Dialect == (Dialect{}) {
		config.Dialect = INIDialect()
	}

	if config.Encoding == "" {
		config.Encoding = "utf-8"
	}

	if config.LineEnding == "" {
		config.LineEnding = LineEndingLF
	}

	if config.FileMode == 0 {
		config.FileMode = 0644
	}

	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}

	// Audit stays disabled unless asked for, but gets usable buffering.
	if config.Audit.BufferSize <= 0 {
		config.Audit.BufferSize = DefaultAuditConfig().BufferSize
	}
	if config.Audit.FlushInterval <= 0 {
		config.Audit.FlushInterval = DefaultAuditConfig().FlushInterval
	}

	if config.ErrorHandler == nil {
		config.ErrorHandler = func(err error) {
			log.Printf("hestia: %v", err)
		}
	}

	return &config
}

// parseOptions derives loader options from the configuration.
func (c *Config) parseOptions() ParseOptions {
	return ParseOptions{RejectDuplicates: c.RejectDuplicates}
}
