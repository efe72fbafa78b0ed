// config_validation.go: Validation of Hestia store configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/go-errors"
)

// Validation errors
var (
	ErrInvalidPollInterval  = errors.New(ErrCodeInvalidConfig, "poll interval must be positive")
	ErrPollIntervalTooSmall = errors.New(ErrCodeInvalidConfig, "poll interval should be at least 10ms for stability")
	ErrUnknownEncoding      = errors.New(ErrCodeEncodingError, "unknown text encoding")
	ErrUnknownLineEnding    = errors.New(ErrCodeInvalidConfig, "line ending must be lf or crlf")
	ErrUnwritableFileMode   = errors.New(ErrCodeInvalidConfig, "file mode must grant the owner write permission")
	ErrInvalidBufferSize    = errors.New(ErrCodeInvalidAuditConfig, "audit buffer size must be positive")
	ErrInvalidFlushInterval = errors.New(ErrCodeInvalidAuditConfig, "audit flush interval must be positive")
	ErrInvalidOutputFile    = errors.New(ErrCodeInvalidAuditConfig, "audit output file path is invalid")
)

var sentinelErrors = []error{
	ErrInvalidPollInterval,
	ErrPollIntervalTooSmall,
	ErrUnknownEncoding,
	ErrUnknownLineEnding,
	ErrUnwritableFileMode,
	ErrInvalidBufferSize,
	ErrInvalidFlushInterval,
	ErrInvalidOutputFile,
}

// ValidationResult contains the result of configuration validation with detailed feedback.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

// Validate returns the first validation error, as one of the sentinel
// errors when it matches one.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}
	first := result.Errors[0]
	for _, sentinel := range sentinelErrors {
		if first == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(ErrCodeInvalidConfig, first)
}

// ValidateDetailed performs all checks and collects errors and warnings.
// The zero values that WithDefaults fills in are accepted.
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validateFormat(&result)
	c.validatePolling(&result)
	c.validateAuditConfig(&result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateFormat(result *ValidationResult) {
	if c.Dialect != (Dialect{}) {
		if err := c.Dialect.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if c.Encoding != "" {
		if _, err := lookupEncoding(c.Encoding); err != nil {
			result.Errors = append(result.Errors, ErrUnknownEncoding.Error())
		}
	}

	if c.LineEnding != "" {
		if _, err := lineTerminator(c.LineEnding); err != nil {
			result.Errors = append(result.Errors, ErrUnknownLineEnding.Error())
		}
	}

	if c.FileMode != 0 {
		if c.FileMode&0200 == 0 {
			result.Errors = append(result.Errors, ErrUnwritableFileMode.Error())
		} else if c.FileMode&0002 != 0 {
			result.Warnings = append(result.Warnings, "file mode makes saved files world-writable")
		}
	}

	if c.RejectDuplicates {
		result.Warnings = append(result.Warnings,
			"duplicate rejection is enabled: files with repeated sections or keys will fail to load")
	}
}

func (c *Config) validatePolling(result *ValidationResult) {
	if c.PollInterval < 0 {
		result.Errors = append(result.Errors, ErrInvalidPollInterval.Error())
	} else if c.PollInterval > 0 && c.PollInterval < 10*time.Millisecond {
		result.Errors = append(result.Errors, ErrPollIntervalTooSmall.Error())
	}
}

// validateAuditConfig validates audit configuration if enabled
func (c *Config) validateAuditConfig(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if c.Audit.BufferSize < 0 {
		result.Errors = append(result.Errors, ErrInvalidBufferSize.Error())
	} else if c.Audit.BufferSize > 10000 {
		result.Warnings = append(result.Warnings, "Large audit buffer size may consume significant memory")
	}

	if c.Audit.FlushInterval < 0 {
		result.Errors = append(result.Errors, ErrInvalidFlushInterval.Error())
	}

	if c.Audit.OutputFile != "" {
		if err := validateOutputFile(c.Audit.OutputFile); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
}

// validateOutputFile checks that the audit output path names a file in an
// existing directory.
func validateOutputFile(outputFile string) error {
	cleanPath := filepath.Clean(outputFile)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return ErrInvalidOutputFile
	}

	dir := filepath.Dir(cleanPath)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(ErrCodeInvalidAuditConfig,
				fmt.Sprintf("directory '%s' does not exist", dir))
		}
		return errors.Wrap(err, ErrCodeInvalidAuditConfig,
			fmt.Sprintf("cannot access directory '%s'", dir))
	}
	if !info.IsDir() {
		return errors.New(ErrCodeInvalidAuditConfig, fmt.Sprintf("'%s' is not a directory", dir))
	}
	return nil
}

// ValidateEnvironmentConfig validates the configuration loaded from HESTIA_* variables.
func ValidateEnvironmentConfig() error {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to load config from environment")
	}
	return config.Validate()
}
