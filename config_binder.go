// config_binder.go: Typed binding of section/key values into Go variables
//
// Bindings are declared first and resolved together by Apply, which parses
// every value before assigning any of them: a failing binding leaves all
// targets untouched.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/agilira/go-errors"
)

// bindKind represents the type of binding for fast type switching
type bindKind uint8

const (
	bindString bindKind = iota
	bindInt
	bindInt64
	bindBool
	bindFloat64
	bindDuration
)

// binding is one declared target. key has the form "section.key".
type binding struct {
	target   unsafe.Pointer
	key      string
	defValue string
	kind     bindKind
}

// ValueSource is anything that can answer section/key lookups.
// *Document satisfies it.
type ValueSource interface {
	Value(section, key string) (string, error)
}

// ConfigBinder binds values from a ValueSource with a fluent API.
type ConfigBinder struct {
	bindings []binding
	source   ValueSource
	err      error
}

// NewConfigBinder creates a binder reading from source.
func NewConfigBinder(source ValueSource) *ConfigBinder {
	return &ConfigBinder{
		bindings: make([]binding, 0, 16),
		source:   source,
	}
}

// BindFromDocument is NewConfigBinder for a loaded document.
func BindFromDocument(doc *Document) *ConfigBinder {
	return NewConfigBinder(doc)
}

func (cb *ConfigBinder) bind(target unsafe.Pointer, key, defValue string, kind bindKind) *ConfigBinder {
	if cb.err != nil {
		return cb
	}
	if _, _, ok := strings.Cut(key, "."); !ok {
		cb.err = errors.New(ErrCodeBindingError,
			fmt.Sprintf("binding key %q must have the form section.key", key)).
			WithContext("key", key)
		return cb
	}
	cb.bindings = append(cb.bindings, binding{
		target:   target,
		key:      key,
		defValue: defValue,
		kind:     kind,
	})
	return cb
}

// BindString binds a string value with optional default
func (cb *ConfigBinder) BindString(target *string, key string, defaultValue ...string) *ConfigBinder {
	defVal := ""
	if len(defaultValue) > 0 {
		defVal = defaultValue[0]
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindString) // #nosec G103 -- typed by the Bind* signature
}

// BindInt binds an integer value with optional default
func (cb *ConfigBinder) BindInt(target *int, key string, defaultValue ...int) *ConfigBinder {
	defVal := "0"
	if len(defaultValue) > 0 {
		defVal = strconv.Itoa(defaultValue[0])
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindInt) // #nosec G103 -- typed by the Bind* signature
}

// BindInt64 binds an int64 value with optional default
func (cb *ConfigBinder) BindInt64(target *int64, key string, defaultValue ...int64) *ConfigBinder {
	defVal := "0"
	if len(defaultValue) > 0 {
		defVal = strconv.FormatInt(defaultValue[0], 10)
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindInt64) // #nosec G103 -- typed by the Bind* signature
}

// BindBool binds a boolean value with optional default
func (cb *ConfigBinder) BindBool(target *bool, key string, defaultValue ...bool) *ConfigBinder {
	defVal := "false"
	if len(defaultValue) > 0 && defaultValue[0] {
		defVal = "true"
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindBool) // #nosec G103 -- typed by the Bind* signature
}

// BindFloat64 binds a float64 value with optional default
func (cb *ConfigBinder) BindFloat64(target *float64, key string, defaultValue ...float64) *ConfigBinder {
	defVal := "0"
	if len(defaultValue) > 0 {
		defVal = strconv.FormatFloat(defaultValue[0], 'f', -1, 64)
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindFloat64) // #nosec G103 -- typed by the Bind* signature
}

// BindDuration binds a time.Duration value with optional default
func (cb *ConfigBinder) BindDuration(target *time.Duration, key string, defaultValue ...time.Duration) *ConfigBinder {
	defVal := "0s"
	if len(defaultValue) > 0 {
		defVal = defaultValue[0].String()
	}
	return cb.bind(unsafe.Pointer(target), key, defVal, bindDuration) // #nosec G103 -- typed by the Bind* signature
}

// Apply resolves every binding. Missing sections or keys take the default;
// values that do not parse fail the whole call.
func (cb *ConfigBinder) Apply() error {
	if cb.err != nil {
		return cb.err
	}

	assign := make([]func(), 0, len(cb.bindings))
	for _, b := range cb.bindings {
		fn, err := cb.resolve(b)
		if err != nil {
			return err
		}
		assign = append(assign, fn)
	}
	for _, fn := range assign {
		fn()
	}
	return nil
}

// resolve parses one binding and returns the assignment to perform.
func (cb *ConfigBinder) resolve(b binding) (func(), error) {
	section, key, _ := strings.Cut(b.key, ".")
	raw, err := cb.source.Value(section, key)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		raw = b.defValue
	}

	fail := func(err error) (func(), error) {
		return nil, errors.Wrap(err, ErrCodeBindingError,
			fmt.Sprintf("failed to bind key '%s' from value %q", b.key, raw)).
			WithContext("key", b.key)
	}

	switch b.kind {
	case bindString:
		return func() { *(*string)(b.target) = raw }, nil
	case bindInt:
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fail(err)
		}
		return func() { *(*int)(b.target) = v }, nil
	case bindInt64:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fail(err)
		}
		return func() { *(*int64)(b.target) = v }, nil
	case bindBool:
		v, err := parseBoolStrict(raw)
		if err != nil {
			return fail(err)
		}
		return func() { *(*bool)(b.target) = v }, nil
	case bindFloat64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fail(err)
		}
		return func() { *(*float64)(b.target) = v }, nil
	case bindDuration:
		v, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fail(err)
		}
		return func() { *(*time.Duration)(b.target) = v }, nil
	default:
		return nil, errors.New(ErrCodeBindingError, fmt.Sprintf("unsupported binding kind: %d", b.kind))
	}
}

// parseBoolStrict accepts the spellings of parseBool and rejects anything else.
func parseBoolStrict(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true, nil
	case "false", "0", "no", "off", "disabled":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}
