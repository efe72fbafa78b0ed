// config_test.go: Tests for configuration defaults and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	config := (&Config{}).WithDefaults()

	if config.Dialect != INIDialect() {
		t.Errorf("Dialect = %+v, want ini", config.Dialect)
	}
	if config.Encoding != "utf-8" {
		t.Errorf("Encoding = %q", config.Encoding)
	}
	if config.LineEnding != LineEndingLF {
		t.Errorf("LineEnding = %q", config.LineEnding)
	}
	if config.FileMode != 0644 {
		t.Errorf("FileMode = %v", config.FileMode)
	}
	if config.PollInterval != time.Second {
		t.Errorf("PollInterval = %v", config.PollInterval)
	}
	if config.Audit.Enabled {
		t.Error("audit must stay disabled by default")
	}
	if config.Audit.BufferSize <= 0 || config.Audit.FlushInterval <= 0 {
		t.Errorf("audit buffering not defaulted: %+v", config.Audit)
	}
	if config.ErrorHandler == nil {
		t.Error("ErrorHandler should be defaulted")
	}
}

func TestConfig_WithDefaultsKeepsExplicitValues(t *testing.T) {
	var handled error
	original := &Config{
		Dialect:      StrictDialect(),
		Encoding:     "utf-16",
		LineEnding:   LineEndingCRLF,
		FileMode:     0600,
		PollInterval: 250 * time.Millisecond,
		ErrorHandler: func(err error) { handled = err },
	}
	config := original.WithDefaults()

	if config == original {
		t.Error("WithDefaults must return a copy")
	}
	if config.Dialect != StrictDialect() || config.Encoding != "utf-16" ||
		config.LineEnding != LineEndingCRLF || config.FileMode != 0600 ||
		config.PollInterval != 250*time.Millisecond {
		t.Errorf("explicit values overwritten: %+v", config)
	}
	config.ErrorHandler(ErrInvalidPollInterval)
	if handled != ErrInvalidPollInterval {
		t.Error("custom ErrorHandler was replaced")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   error
	}{
		{"negative poll interval", Config{PollInterval: -time.Second}, ErrInvalidPollInterval},
		{"tiny poll interval", Config{PollInterval: time.Millisecond}, ErrPollIntervalTooSmall},
		{"unknown encoding", Config{Encoding: "klingon"}, ErrUnknownEncoding},
		{"unknown line ending", Config{LineEnding: "cr"}, ErrUnknownLineEnding},
		{"read-only file mode", Config{FileMode: 0444}, ErrUnwritableFileMode},
		{"negative buffer", Config{Audit: AuditConfig{Enabled: true, BufferSize: -1}}, ErrInvalidBufferSize},
		{"negative flush", Config{Audit: AuditConfig{Enabled: true, FlushInterval: -time.Second}}, ErrInvalidFlushInterval},
		{"root output file", Config{Audit: AuditConfig{Enabled: true, OutputFile: string(filepath.Separator)}}, ErrInvalidOutputFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); err != tt.want {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	if err := (&Config{}).Validate(); err != nil {
		t.Errorf("zero config should be valid, got %v", err)
	}
	if err := (&Config{}).WithDefaults().Validate(); err != nil {
		t.Errorf("defaulted config should be valid, got %v", err)
	}
}

func TestConfig_ValidateBadDialect(t *testing.T) {
	d := INIDialect()
	d.Comment = "="
	config := Config{Dialect: d}
	if err := config.Validate(); !HasCode(err, ErrCodeInvalidConfig) {
		t.Errorf("expected %s, got %v", ErrCodeInvalidConfig, err)
	}
}

func TestConfig_ValidateDetailed(t *testing.T) {
	config := Config{
		FileMode:         0666,
		RejectDuplicates: true,
		PollInterval:     -1,
		Encoding:         "klingon",
	}
	result := config.ValidateDetailed()

	if result.Valid {
		t.Fatal("expected an invalid result")
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2 entries", result.Warnings)
	}
	if !strings.Contains(result.String(), "invalid") {
		t.Errorf("String() = %q", result.String())
	}

	ok := (&Config{RejectDuplicates: true}).ValidateDetailed()
	if !ok.Valid || !strings.Contains(ok.String(), "1 warning") {
		t.Errorf("unexpected result %+v (%s)", ok, ok)
	}
}

func TestConfig_ValidateMissingAuditDirectory(t *testing.T) {
	config := Config{Audit: AuditConfig{
		Enabled:    true,
		OutputFile: filepath.Join(t.TempDir(), "missing", "audit.db"),
	}}
	if err := config.Validate(); !HasCode(err, ErrCodeInvalidConfig) {
		t.Errorf("expected %s, got %v", ErrCodeInvalidConfig, err)
	}
}
