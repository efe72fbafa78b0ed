// errors.go: Error codes and helpers for Hestia
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for Hestia operations
const (
	ErrCodeIOError            = "HESTIA_IO_ERROR"
	ErrCodeFileNotFound       = "HESTIA_FILE_NOT_FOUND"
	ErrCodeMalformedFile      = "HESTIA_MALFORMED_FILE"
	ErrCodeSectionNotFound    = "HESTIA_SECTION_NOT_FOUND"
	ErrCodeKeyNotFound        = "HESTIA_KEY_NOT_FOUND"
	ErrCodeInvalidIdentifier  = "HESTIA_INVALID_IDENTIFIER"
	ErrCodeInvalidValue       = "HESTIA_INVALID_VALUE"
	ErrCodeNotLoaded          = "HESTIA_NOT_LOADED"
	ErrCodeDuplicateSection   = "HESTIA_DUPLICATE_SECTION"
	ErrCodeDuplicateKey       = "HESTIA_DUPLICATE_KEY"
	ErrCodeEncodingError      = "HESTIA_ENCODING_ERROR"
	ErrCodeInvalidConfig      = "HESTIA_INVALID_CONFIG"
	ErrCodeInvalidAuditConfig = "HESTIA_INVALID_AUDIT_CONFIG"
	ErrCodeBindingError       = "HESTIA_BINDING_ERROR"
	ErrCodeExportError        = "HESTIA_EXPORT_ERROR"
	ErrCodeCorruptIndex       = "HESTIA_CORRUPT_INDEX"
	ErrCodeWatcherBusy        = "HESTIA_WATCHER_BUSY"
	ErrCodeWatcherStopped     = "HESTIA_WATCHER_STOPPED"
)

// ErrorCode returns the first Hestia error code found in the wrap chain of err,
// or "" when err carries none.
func ErrorCode(err error) string {
	for e := err; e != nil; e = goerrors.Unwrap(e) {
		if coder, ok := e.(errors.ErrorCoder); ok {
			if code := string(coder.ErrorCode()); code != "" {
				return code
			}
		}
	}
	return ""
}

// HasCode reports whether any error in the wrap chain of err carries code.
func HasCode(err error, code string) bool {
	for e := err; e != nil; e = goerrors.Unwrap(e) {
		if coder, ok := e.(errors.ErrorCoder); ok && string(coder.ErrorCode()) == code {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a missing section or key error.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeSectionNotFound) || HasCode(err, ErrCodeKeyNotFound)
}

func sectionNotFound(section string) error {
	return errors.New(ErrCodeSectionNotFound, "section not found: "+section).
		WithContext("section", section)
}

func keyNotFound(section, key string) error {
	return errors.New(ErrCodeKeyNotFound, "key not found: "+section+"."+key).
		WithContext("section", section).
		WithContext("key", key)
}
