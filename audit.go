// audit.go: Audit trail of store activity for Hestia
//
// Every load, mutation and save performed through a Store can be recorded
// as an AuditEvent. Events are buffered and flushed in batches to a
// pluggable backend (SQLite or JSONL) by a background goroutine.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel parses INFO, WARN, CRITICAL or SECURITY, case-insensitively.
func ParseAuditLevel(s string) (AuditLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return AuditInfo, true
	case "WARN", "WARNING":
		return AuditWarn, true
	case "CRITICAL":
		return AuditCritical, true
	case "SECURITY":
		return AuditSecurity, true
	default:
		return AuditInfo, false
	}
}

// Audit event names emitted by Store and the CLI.
const (
	EventStoreLoaded    = "store_loaded"
	EventLoadRejected   = "load_rejected"
	EventKeyWritten     = "key_written"
	EventKeyDeleted     = "key_deleted"
	EventSectionCleared = "section_cleared"
	EventStoreSaved     = "store_saved"
	EventStoreReset     = "store_reset"
	EventStoreReplaced  = "store_replaced"
	EventStoreCreated   = "store_created"
)

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Event       string                 `json:"event"`
	Component   string                 `json:"component"`
	SessionID   string                 `json:"session_id,omitempty"`
	FilePath    string                 `json:"file_path,omitempty"`
	Section     string                 `json:"section,omitempty"`
	Key         string                 `json:"key,omitempty"`
	OldValue    string                 `json:"old_value,omitempty"`
	NewValue    string                 `json:"new_value,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"`
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig returns an enabled audit configuration writing to the
// default SQLite database. A .jsonl OutputFile selects the JSONL backend.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger buffers audit events and flushes them to a backend.
// It is safe for concurrent use.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string

	// errorHandler receives flush errors from the background loop.
	errorHandler func(error)
}

// NewAuditLogger creates an audit logger and starts its background flusher
// when FlushInterval is positive.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = 1
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to initialize audit backend")
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditEvent, 0, config.BufferSize),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
		errorHandler: func(err error) {
			log.Printf("hestia: audit flush failed: %v", err)
		},
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// SetErrorHandler replaces the handler for background flush errors.
func (al *AuditLogger) SetErrorHandler(handler func(error)) {
	if al == nil || handler == nil {
		return
	}
	al.bufferMu.Lock()
	al.errorHandler = handler
	al.bufferMu.Unlock()
}

// Record stamps, checksums and buffers an event. A nil logger, a disabled
// logger or an event below MinLevel is ignored.
func (al *AuditLogger) Record(event AuditEvent) {
	if al == nil || al.backend == nil || !al.config.Enabled || event.Level < al.config.MinLevel {
		return
	}

	event.Timestamp = timecache.CachedTime()
	if event.Component == "" {
		event.Component = "hestia"
	}
	event.ProcessID = al.processID
	event.ProcessName = al.processName
	event.Checksum = eventChecksum(event)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, event)
	if len(al.buffer) >= al.config.BufferSize {
		if err := al.flushBufferUnsafe(); err != nil && al.errorHandler != nil {
			al.errorHandler(err)
		}
	}
	al.bufferMu.Unlock()
}

// Log records an event without section or key information.
func (al *AuditLogger) Log(level AuditLevel, event, filePath string, context map[string]interface{}) {
	al.Record(AuditEvent{
		Level:    level,
		Event:    event,
		FilePath: filePath,
		Context:  context,
	})
}

// LogMutation records a change to one key or section of a store.
func (al *AuditLogger) LogMutation(session, event, filePath, section, key, oldValue, newValue string) {
	al.Record(AuditEvent{
		Level:     AuditCritical,
		Event:     event,
		SessionID: session,
		FilePath:  filePath,
		Section:   section,
		Key:       key,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// LogStoreEvent records a whole-file event such as a load or a save.
func (al *AuditLogger) LogStoreEvent(level AuditLevel, session, event, filePath string, context map[string]interface{}) {
	al.Record(AuditEvent{
		Level:     level,
		Event:     event,
		SessionID: session,
		FilePath:  filePath,
		Context:   context,
	})
}

// LogCommand records a CLI invocation as "cli_<command>".
func (al *AuditLogger) LogCommand(command, filePath string, context map[string]interface{}) {
	al.Record(AuditEvent{
		Level:     AuditInfo,
		Event:     "cli_" + command,
		Component: "hestia-cli",
		FilePath:  filePath,
		Context:   context,
	})
}

// QueryEvents returns persisted events matching q, newest first.
// Buffered events are flushed first.
func (al *AuditLogger) QueryEvents(q AuditQuery) ([]AuditEvent, error) {
	if al == nil {
		return nil, errNilAuditLogger()
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Query(q)
}

// Cleanup deletes persisted events older than olderThan and returns how many
// were (or, with dryRun, would be) removed.
func (al *AuditLogger) Cleanup(olderThan time.Duration, dryRun bool) (int64, error) {
	if al == nil {
		return 0, errNilAuditLogger()
	}
	if olderThan <= 0 {
		return 0, errors.New(ErrCodeInvalidAuditConfig, "cleanup age must be positive")
	}
	if err := al.Flush(); err != nil {
		return 0, err
	}
	return al.backend.Cleanup(time.Now().Add(-olderThan), dryRun)
}

// Stats returns backend statistics.
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if al == nil {
		return nil, errNilAuditLogger()
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.Stats()
}

func errNilAuditLogger() error {
	return errors.New(ErrCodeInvalidAuditConfig, "audit logger is nil")
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if al == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Close stops the flusher, writes pending events and closes the backend.
// Calling Close more than once is a no-op.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var closeErr error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}

		if err := al.Flush(); err != nil {
			closeErr = errors.Wrap(err, ErrCodeIOError, "failed to flush audit logger during close")
			return
		}
		if al.backend != nil {
			if err := al.backend.Close(); err != nil {
				closeErr = errors.Wrap(err, ErrCodeIOError, "failed to close audit backend")
			}
		}
	})
	return closeErr
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			if err := al.Flush(); err != nil {
				al.bufferMu.Lock()
				handler := al.errorHandler
				al.bufferMu.Unlock()
				if handler != nil {
					handler(err)
				}
			}
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller must hold bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}
	if err := al.backend.Write(al.buffer); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to write audit events to backend")
	}
	al.buffer = al.buffer[:0]
	return nil
}

// eventChecksum creates a tamper-detection checksum using SHA-256
func eventChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s:%s",
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Event, event.Component, event.SessionID,
		event.Section, event.Key, event.OldValue, event.NewValue)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether event still matches its checksum.
func VerifyChecksum(event AuditEvent) bool {
	return eventChecksum(event) == event.Checksum
}

func getProcessName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "hestia"
}
