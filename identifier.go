// identifier.go: Identifier and value validation for section and key names
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/agilira/go-errors"
)

// IdentifierPolicy selects the character grammar accepted for section and key names.
type IdentifierPolicy int

const (
	// IdentifierLoose accepts Unicode letters and digits, spaces ignored.
	IdentifierLoose IdentifierPolicy = iota

	// IdentifierStrict accepts ASCII names matching ^[A-Za-z]+[A-Za-z0-9_]*$.
	IdentifierStrict
)

var strictIdentifier = regexp.MustCompile(`^[A-Za-z]+[A-Za-z0-9_]*$`)

// String returns the policy name used in configuration and env vars.
func (p IdentifierPolicy) String() string {
	switch p {
	case IdentifierLoose:
		return "loose"
	case IdentifierStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// Valid reports whether s is an acceptable identifier under the policy.
// The empty string is never valid.
func (p IdentifierPolicy) Valid(s string) bool {
	switch p {
	case IdentifierStrict:
		return strictIdentifier.MatchString(s)
	case IdentifierLoose:
		compact := strings.ReplaceAll(s, " ", "")
		if compact == "" {
			return false
		}
		for _, r := range compact {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ValidValue reports whether v is free of control characters (code < 32).
func ValidValue(v string) bool {
	for _, r := range v {
		if r < 32 {
			return false
		}
	}
	return true
}

// checkIdentifier validates a section or key name supplied to a mutation.
// Surrounding whitespace is rejected because it would not survive a trimmed reload.
func checkIdentifier(policy IdentifierPolicy, kind, name string) error {
	if name == "" {
		return errors.New(ErrCodeInvalidIdentifier, kind+" name cannot be empty")
	}
	if strings.TrimSpace(name) != name {
		return errors.New(ErrCodeInvalidIdentifier,
			fmt.Sprintf("%s name %q contains leading or trailing whitespace", kind, name)).
			WithContext(kind, name)
	}
	if !policy.Valid(name) {
		return errors.New(ErrCodeInvalidIdentifier,
			fmt.Sprintf("%s name %q is not a valid %s identifier", kind, name, policy)).
			WithContext(kind, name)
	}
	return nil
}

// checkValue validates a value supplied to a mutation. With trim set the
// value must also survive a reload unchanged, so surrounding whitespace is
// rejected.
func checkValue(key, value string, trim bool) error {
	if trim && strings.TrimSpace(value) != value {
		return errors.New(ErrCodeInvalidValue,
			fmt.Sprintf("value for %q has surrounding whitespace the dialect trims on load", key)).
			WithContext("key", key)
	}
	for i, r := range value {
		if r < 32 {
			return errors.New(ErrCodeInvalidValue,
				fmt.Sprintf("value for %q contains control character 0x%02X at byte %d", key, r, i)).
				WithContext("key", key)
		}
	}
	return nil
}
