// errors_test.go: Tests for error code helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"testing"

	"github.com/agilira/go-errors"
)

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(sectionNotFound("A")); got != ErrCodeSectionNotFound {
		t.Errorf("ErrorCode = %q", got)
	}
	if got := ErrorCode(fmt.Errorf("plain")); got != "" {
		t.Errorf("plain error has code %q", got)
	}
	if got := ErrorCode(nil); got != "" {
		t.Errorf("nil error has code %q", got)
	}

	wrapped := fmt.Errorf("reading config: %w", keyNotFound("A", "k"))
	if got := ErrorCode(wrapped); got != ErrCodeKeyNotFound {
		t.Errorf("ErrorCode through fmt wrap = %q", got)
	}
}

func TestHasCode(t *testing.T) {
	err := errors.Wrap(fmt.Errorf("disk full"), ErrCodeIOError, "failed to save")
	if !HasCode(err, ErrCodeIOError) {
		t.Error("HasCode missed the outer code")
	}
	if HasCode(err, ErrCodeKeyNotFound) {
		t.Error("HasCode matched an absent code")
	}
	if HasCode(nil, ErrCodeIOError) {
		t.Error("HasCode matched nil")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{sectionNotFound("A"), true},
		{keyNotFound("A", "k"), true},
		{errors.New(ErrCodeInvalidIdentifier, "bad"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.want {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
