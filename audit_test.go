// audit_test.go: Tests for the audit logger on both backends
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestAuditLogger(t *testing.T, file string) *AuditLogger {
	t.Helper()
	config := AuditConfig{
		Enabled:       true,
		OutputFile:    filepath.Join(t.TempDir(), file),
		MinLevel:      AuditInfo,
		BufferSize:    10,
		FlushInterval: 0,
	}
	auditor, err := NewAuditLogger(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := auditor.Close(); err != nil {
			t.Errorf("Failed to close auditor: %v", err)
		}
	})
	return auditor
}

// auditBackends runs fn once per persistent backend.
func auditBackends(t *testing.T, fn func(t *testing.T, auditor *AuditLogger)) {
	for _, file := range []string{"audit.jsonl", "audit.db"} {
		t.Run(filepath.Ext(file)[1:], func(t *testing.T) {
			fn(t, newTestAuditLogger(t, file))
		})
	}
}

func TestAuditLevel_StringAndParse(t *testing.T) {
	for _, level := range []AuditLevel{AuditInfo, AuditWarn, AuditCritical, AuditSecurity} {
		parsed, ok := ParseAuditLevel(strings.ToLower(level.String()))
		if !ok || parsed != level {
			t.Errorf("ParseAuditLevel(%q) = %v, %v", level, parsed, ok)
		}
	}
	if _, ok := ParseAuditLevel("loud"); ok {
		t.Error("unknown level accepted")
	}
	if AuditLevel(99).String() != "UNKNOWN" {
		t.Error("unknown level should render as UNKNOWN")
	}
	if level, ok := ParseAuditLevel("warning"); !ok || level != AuditWarn {
		t.Error("WARNING should parse as WARN")
	}
}

func TestAuditLogger_RecordAndQuery(t *testing.T) {
	auditBackends(t, func(t *testing.T, auditor *AuditLogger) {
		auditor.LogStoreEvent(AuditInfo, "session-1", EventStoreLoaded, "/etc/app.ini", map[string]interface{}{"sections": 2})
		auditor.LogMutation("session-1", EventKeyWritten, "/etc/app.ini", "Server", "port", "80", "8080")
		auditor.LogMutation("session-2", EventKeyDeleted, "/etc/other.ini", "Cache", "ttl", "5m", "")
		auditor.LogCommand("get", "/etc/app.ini", nil)

		all, err := auditor.QueryEvents(AuditQuery{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 4 {
			t.Fatalf("expected 4 events, got %d", len(all))
		}
		if all[0].Event != "cli_get" || all[0].Component != "hestia-cli" {
			t.Errorf("newest event first expected, got %+v", all[0])
		}

		written, err := auditor.QueryEvents(AuditQuery{Event: EventKeyWritten})
		if err != nil {
			t.Fatal(err)
		}
		if len(written) != 1 {
			t.Fatalf("expected 1 key_written event, got %d", len(written))
		}
		e := written[0]
		if e.Section != "Server" || e.Key != "port" || e.OldValue != "80" || e.NewValue != "8080" {
			t.Errorf("mutation fields lost: %+v", e)
		}
		if e.Level != AuditCritical || e.Component != "hestia" || e.SessionID != "session-1" {
			t.Errorf("event metadata = %+v", e)
		}
		if !VerifyChecksum(e) {
			t.Error("checksum should verify after a round trip through the backend")
		}

		bySession, _ := auditor.QueryEvents(AuditQuery{SessionID: "session-2"})
		byFile, _ := auditor.QueryEvents(AuditQuery{FilePath: "/etc/app.ini"})
		limited, _ := auditor.QueryEvents(AuditQuery{Limit: 2})
		future, _ := auditor.QueryEvents(AuditQuery{Since: time.Now().Add(time.Hour)})
		if len(bySession) != 1 || len(byFile) != 3 || len(limited) != 2 || len(future) != 0 {
			t.Errorf("filters: session=%d file=%d limit=%d future=%d",
				len(bySession), len(byFile), len(limited), len(future))
		}
	})
}

func TestAuditLogger_Stats(t *testing.T) {
	auditBackends(t, func(t *testing.T, auditor *AuditLogger) {
		auditor.Log(AuditInfo, "watch_start", "/a.ini", nil)
		auditor.Log(AuditWarn, EventLoadRejected, "/a.ini", map[string]interface{}{"error": "boom"})
		auditor.Log(AuditWarn, EventLoadRejected, "/b.ini", nil)

		stats, err := auditor.Stats()
		if err != nil {
			t.Fatal(err)
		}
		if stats.TotalEvents != 3 {
			t.Errorf("TotalEvents = %d", stats.TotalEvents)
		}
		if stats.EventsByLevel["WARN"] != 2 || stats.EventsByLevel["INFO"] != 1 {
			t.Errorf("EventsByLevel = %v", stats.EventsByLevel)
		}
		if stats.EventsByName[EventLoadRejected] != 2 {
			t.Errorf("EventsByName = %v", stats.EventsByName)
		}
		if stats.OldestEvent == nil || stats.NewestEvent == nil || stats.NewestEvent.Before(*stats.OldestEvent) {
			t.Errorf("time range = %v..%v", stats.OldestEvent, stats.NewestEvent)
		}
	})
}

func TestAuditLogger_Cleanup(t *testing.T) {
	auditBackends(t, func(t *testing.T, auditor *AuditLogger) {
		auditor.Log(AuditInfo, "first", "/a.ini", nil)
		auditor.Log(AuditInfo, "second", "/a.ini", nil)
		if err := auditor.Flush(); err != nil {
			t.Fatal(err)
		}

		if n, err := auditor.Cleanup(time.Hour, false); err != nil || n != 0 {
			t.Errorf("recent events must survive, removed %d (%v)", n, err)
		}

		time.Sleep(20 * time.Millisecond)
		n, err := auditor.Cleanup(time.Nanosecond, true)
		if err != nil || n != 2 {
			t.Errorf("dry run should count 2 events, got %d (%v)", n, err)
		}
		if events, _ := auditor.QueryEvents(AuditQuery{}); len(events) != 2 {
			t.Errorf("dry run deleted events: %d left", len(events))
		}

		n, err = auditor.Cleanup(time.Nanosecond, false)
		if err != nil || n != 2 {
			t.Errorf("Cleanup removed %d (%v), want 2", n, err)
		}
		if events, _ := auditor.QueryEvents(AuditQuery{}); len(events) != 0 {
			t.Errorf("%d events left after cleanup", len(events))
		}

		// the logger keeps working after a cleanup
		auditor.Log(AuditInfo, "third", "/a.ini", nil)
		if events, _ := auditor.QueryEvents(AuditQuery{}); len(events) != 1 {
			t.Errorf("expected 1 event after cleanup, got %d", len(events))
		}

		if _, err := auditor.Cleanup(0, true); !HasCode(err, ErrCodeInvalidAuditConfig) {
			t.Errorf("expected %s, got %v", ErrCodeInvalidAuditConfig, err)
		}
	})
}

func TestAuditLogger_MinLevelAndDisabled(t *testing.T) {
	dir := t.TempDir()
	auditor, err := NewAuditLogger(AuditConfig{
		Enabled:    true,
		OutputFile: filepath.Join(dir, "levels.jsonl"),
		MinLevel:   AuditCritical,
		BufferSize: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = auditor.Close() }()

	auditor.Log(AuditInfo, "ignored", "/a.ini", nil)
	auditor.Log(AuditSecurity, "kept", "/a.ini", nil)
	events, err := auditor.QueryEvents(AuditQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Event != "kept" {
		t.Errorf("MinLevel filter failed: %+v", events)
	}

	disabled, err := NewAuditLogger(AuditConfig{Enabled: false, OutputFile: filepath.Join(dir, "off.jsonl")})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = disabled.Close() }()
	disabled.Log(AuditSecurity, "dropped", "/a.ini", nil)
	if events, _ := disabled.QueryEvents(AuditQuery{}); len(events) != 0 {
		t.Errorf("disabled logger recorded %d events", len(events))
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var auditor *AuditLogger
	auditor.Log(AuditInfo, "x", "/a.ini", nil)
	auditor.LogMutation("s", EventKeyWritten, "/a.ini", "A", "k", "", "v")
	auditor.SetErrorHandler(func(error) {})
	if err := auditor.Flush(); err != nil {
		t.Errorf("Flush() on nil logger = %v", err)
	}
	if err := auditor.Close(); err != nil {
		t.Errorf("Close() on nil logger = %v", err)
	}

	if _, err := auditor.QueryEvents(AuditQuery{}); !HasCode(err, ErrCodeInvalidAuditConfig) {
		t.Errorf("QueryEvents() on nil logger = %v", err)
	}
	if _, err := auditor.Cleanup(time.Hour, true); !HasCode(err, ErrCodeInvalidAuditConfig) {
		t.Errorf("Cleanup() on nil logger = %v", err)
	}
	if _, err := auditor.Stats(); !HasCode(err, ErrCodeInvalidAuditConfig) {
		t.Errorf("Stats() on nil logger = %v", err)
	}
}

func TestAuditLogger_BufferFlushesWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.jsonl")
	auditor, err := NewAuditLogger(AuditConfig{Enabled: true, OutputFile: path, BufferSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = auditor.Close() }()

	auditor.Log(AuditInfo, "one", "/a.ini", nil)
	if data, _ := os.ReadFile(path); len(data) != 0 {
		t.Error("a single event should stay buffered")
	}
	auditor.Log(AuditInfo, "two", "/a.ini", nil)
	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "\n") != 2 {
		t.Errorf("full buffer should be written, got %q", data)
	}
}

func TestAuditLogger_CloseTwice(t *testing.T) {
	auditor, err := NewAuditLogger(AuditConfig{
		Enabled:       true,
		OutputFile:    filepath.Join(t.TempDir(), "twice.jsonl"),
		BufferSize:    5,
		FlushInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := auditor.Close(); err != nil {
		t.Fatal(err)
	}
	if err := auditor.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestVerifyChecksum_DetectsTampering(t *testing.T) {
	event := AuditEvent{
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC),
		Event:     EventKeyWritten,
		Component: "hestia",
		Section:   "Server",
		Key:       "port",
		NewValue:  "8080",
	}
	event.Checksum = eventChecksum(event)
	if !VerifyChecksum(event) {
		t.Fatal("fresh checksum does not verify")
	}

	local := event
	local.Timestamp = event.Timestamp.In(time.FixedZone("CET", 3600))
	if !VerifyChecksum(local) {
		t.Error("checksum must not depend on the time zone")
	}

	event.NewValue = "9090"
	if VerifyChecksum(event) {
		t.Error("tampered event still verifies")
	}
}

func TestDefaultAuditPath(t *testing.T) {
	if !strings.HasSuffix(DefaultAuditPath(), filepath.Join("hestia", "audit.db")) {
		t.Errorf("DefaultAuditPath() = %q", DefaultAuditPath())
	}
}
