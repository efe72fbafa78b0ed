// audit_backend.go: Storage backends for the Hestia audit trail
//
// Two backends implement auditBackend: SQLite (default, queryable, WAL mode
// with a versioned schema) and JSONL (one JSON object per line). A .jsonl
// OutputFile selects JSONL; any other path is a SQLite database, and if
// SQLite cannot be opened the logger falls back to JSONL next to it.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditTimeLayout is fixed-width UTC so stored timestamps sort lexically.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AuditQuery filters persisted audit events. Zero fields match everything.
type AuditQuery struct {
	Since     time.Time
	Event     string
	FilePath  string
	SessionID string
	Limit     int
}

func (q AuditQuery) matches(e AuditEvent) bool {
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if q.Event != "" && e.Event != q.Event {
		return false
	}
	if q.FilePath != "" && e.FilePath != q.FilePath {
		return false
	}
	if q.SessionID != "" && e.SessionID != q.SessionID {
		return false
	}
	return true
}

// AuditDatabaseStats summarizes the contents of an audit backend.
type AuditDatabaseStats struct {
	Backend       string           `json:"backend"`
	Path          string           `json:"path"`
	TotalEvents   int64            `json:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	OldestEvent   *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time       `json:"newest_event,omitempty"`
	SizeBytes     int64            `json:"size_bytes"`
	SchemaVersion int              `json:"schema_version"`
}

func newAuditStats(backend, path string) *AuditDatabaseStats {
	return &AuditDatabaseStats{
		Backend:       backend,
		Path:          path,
		EventsByLevel: make(map[string]int64),
		EventsByName:  make(map[string]int64),
	}
}

// auditBackend persists and retrieves audit events.
type auditBackend interface {
	// Write persists a batch of events.
	Write(events []AuditEvent) error

	// Flush commits pending writes to durable storage.
	Flush() error

	// Query returns events matching q, newest first.
	Query(q AuditQuery) ([]AuditEvent, error)

	// Cleanup removes events older than before. With dryRun it only counts them.
	Cleanup(before time.Time, dryRun bool) (int64, error)

	Stats() (*AuditDatabaseStats, error)

	// Close releases all resources. The backend must not be used afterwards.
	Close() error
}

// createAuditBackend selects a backend from the configured output file.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && strings.EqualFold(filepath.Ext(config.OutputFile), ".jsonl") {
		return newJSONLBackend(config.OutputFile)
	}

	dbPath := config.OutputFile
	if dbPath == "" {
		dbPath = DefaultAuditPath()
	}

	backend, err := newSQLiteBackend(dbPath)
	if err == nil {
		return backend, nil
	}

	jsonlBackend, jsonlErr := newJSONLBackend(strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + ".jsonl")
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

// DefaultAuditPath returns the SQLite database used when no output file is configured.
func DefaultAuditPath() string {
	return filepath.Join(os.TempDir(), "hestia", "audit.db")
}

// sqliteAuditBackend stores events in the store_events table.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(dbPath string) (*sqliteAuditBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}
	if err := backend.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}

	stmt, err := db.Prepare(`
	INSERT INTO store_events (
		timestamp, level, event, component, session_id,
		file_path, section_name, key_name, old_value, new_value,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	backend.insertStmt = stmt

	return backend, nil
}

// ensureSchemaVersion migrates the database to the current schema.
//
//   - Version 1: store_events table
//   - Version 2: query indexes for session, file and event lookups
func (s *sqliteAuditBackend) ensureSchemaVersion() error {
	const currentSchemaVersion = 2

	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	for v := version; v < currentSchemaVersion; v++ {
		var stmts []string
		switch v {
		case 0:
			stmts = schemaV1
		case 1:
			stmts = schemaV2
		default:
			_ = tx.Rollback()
			return fmt.Errorf("unknown migration path from version %d", v)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration to v%d failed: %w", v+1, err)
			}
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)`,
		currentSchemaVersion); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS store_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		component TEXT NOT NULL,
		session_id TEXT,
		file_path TEXT,
		section_name TEXT,
		key_name TEXT,
		old_value TEXT,
		new_value TEXT,
		process_id INTEGER NOT NULL,
		process_name TEXT NOT NULL,
		context TEXT,
		checksum TEXT
	);`,
	"CREATE INDEX IF NOT EXISTS idx_store_events_timestamp ON store_events(timestamp)",
}

var schemaV2 = []string{
	"CREATE INDEX IF NOT EXISTS idx_store_events_session ON store_events(session_id, timestamp)",
	"CREATE INDEX IF NOT EXISTS idx_store_events_file ON store_events(file_path, timestamp)",
	"CREATE INDEX IF NOT EXISTS idx_store_events_event ON store_events(event, timestamp)",
}

func (s *sqliteAuditBackend) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check schema version: %w", err)
	}
	return version, nil
}

func (s *sqliteAuditBackend) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(ErrCodeIOError, "audit backend is closed")
	}
	return nil
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt := tx.Stmt(s.insertStmt)
	defer func() { _ = stmt.Close() }()

	for _, event := range events {
		contextJSON := ""
		if event.Context != nil {
			data, marshalErr := json.Marshal(event.Context)
			if marshalErr != nil {
				return fmt.Errorf("failed to serialize context: %w", marshalErr)
			}
			contextJSON = string(data)
		}
		if _, err = stmt.Exec(
			event.Timestamp.UTC().Format(auditTimeLayout),
			event.Level.String(),
			event.Event,
			event.Component,
			event.SessionID,
			event.FilePath,
			event.Section,
			event.Key,
			event.OldValue,
			event.NewValue,
			event.ProcessID,
			event.ProcessName,
			contextJSON,
			event.Checksum,
		); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Flush() error {
	if s.checkOpen() != nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format(auditTimeLayout))
	}
	if q.Event != "" {
		where = append(where, "event = ?")
		args = append(args, q.Event)
	}
	if q.FilePath != "" {
		where = append(where, "file_path = ?")
		args = append(args, q.FilePath)
	}
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}

	query := `SELECT timestamp, level, event, component, session_id, file_path, section_name, key_name,
		old_value, new_value, process_id, process_name, context, checksum FROM store_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                       AuditEvent
			ts, level               string
			session, file, sec, key sql.NullString
			oldVal, newVal, ctxJSON sql.NullString
			checksum                sql.NullString
		)
		if err := rows.Scan(&ts, &level, &e.Event, &e.Component, &session, &file, &sec, &key,
			&oldVal, &newVal, &e.ProcessID, &e.ProcessName, &ctxJSON, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if parsed, err := time.Parse(auditTimeLayout, ts); err == nil {
			e.Timestamp = parsed
		}
		e.Level, _ = ParseAuditLevel(level)
		e.SessionID, e.FilePath, e.Section, e.Key = session.String, file.String, sec.String, key.String
		e.OldValue, e.NewValue, e.Checksum = oldVal.String, newVal.String, checksum.String
		if ctxJSON.String != "" {
			_ = json.Unmarshal([]byte(ctxJSON.String), &e.Context)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *sqliteAuditBackend) Cleanup(before time.Time, dryRun bool) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	cutoff := before.UTC().Format(auditTimeLayout)

	if dryRun {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM store_events WHERE timestamp < ?", cutoff).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count old audit events: %w", err)
		}
		return n, nil
	}

	result, err := s.db.Exec("DELETE FROM store_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit events: %w", err)
	}
	n, _ := result.RowsAffected()
	_, _ = s.db.Exec("PRAGMA optimize")
	return n, nil
}

func (s *sqliteAuditBackend) Stats() (*AuditDatabaseStats, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	stats := newAuditStats("sqlite", s.dbPath)

	if err := s.db.QueryRow("SELECT COUNT(*) FROM store_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total events count: %w", err)
	}
	if err := s.groupCount("level", stats.EventsByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount("event", stats.EventsByName); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM store_events").Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to get event time range: %w", err)
	}
	if t, err := time.Parse(auditTimeLayout, oldest.String); oldest.Valid && err == nil {
		stats.OldestEvent = &t
	}
	if t, err := time.Parse(auditTimeLayout, newest.String); newest.Valid && err == nil {
		stats.NewestEvent = &t
	}

	version, err := s.schemaVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version
	if info, err := os.Stat(s.dbPath); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// groupCount fills into with COUNT(*) grouped by column, which must be a
// fixed column name.
func (s *sqliteAuditBackend) groupCount(column string, into map[string]int64) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM store_events GROUP BY " + column) // #nosec G202 -- column is a constant
	if err != nil {
		return fmt.Errorf("failed to group events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		into[name] = count
	}
	return rows.Err()
}

// Close checkpoints the WAL and closes the database. Safe to call twice.
func (s *sqliteAuditBackend) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %s", strings.Join(errs, "; "))
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per line.
type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}
	file, err := openJSONL(path)
	if err != nil {
		return nil, err
	}
	return &jsonlAuditBackend{file: file, path: path}, nil
}

func openJSONL(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- audit path from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}
	return file, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New(ErrCodeIOError, "audit backend is closed")
	}

	w := bufio.NewWriter(j.file)
	enc := json.NewEncoder(w)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to write audit event to JSONL: %w", err)
		}
	}
	return w.Flush()
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

// readAll decodes every event in the file (caller must hold mu).
func (j *jsonlAuditBackend) readAll() ([]AuditEvent, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt JSONL audit line: %w", err)
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

func (j *jsonlAuditBackend) Query(q AuditQuery) ([]AuditEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var events []AuditEvent
	for _, e := range slices.Backward(all) {
		if !q.matches(e) {
			continue
		}
		events = append(events, e)
		if q.Limit > 0 && len(events) == q.Limit {
			break
		}
	}
	return events, nil
}

// Cleanup rewrites the file without the old events.
func (j *jsonlAuditBackend) Cleanup(before time.Time, dryRun bool) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, errors.New(ErrCodeIOError, "audit backend is closed")
	}

	all, err := j.readAll()
	if err != nil {
		return 0, err
	}
	kept := slices.DeleteFunc(slices.Clone(all), func(e AuditEvent) bool {
		return e.Timestamp.Before(before)
	})
	removed := int64(len(all) - len(kept))
	if dryRun || removed == 0 {
		return removed, nil
	}

	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			return 0, fmt.Errorf("failed to encode audit event: %w", err)
		}
	}

	_ = j.file.Close()
	if err := atomicWrite(j.path, []byte(b.String()), 0600); err != nil {
		return 0, err
	}
	file, err := openJSONL(j.path)
	if err != nil {
		j.closed = true
		return 0, err
	}
	j.file = file
	return removed, nil
}

func (j *jsonlAuditBackend) Stats() (*AuditDatabaseStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := newAuditStats("jsonl", j.path)
	stats.SchemaVersion = 1
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		stats.TotalEvents++
		stats.EventsByLevel[e.Level.String()]++
		stats.EventsByName[e.Event]++
		ts := e.Timestamp
		if stats.OldestEvent == nil || ts.Before(*stats.OldestEvent) {
			stats.OldestEvent = &ts
		}
		if stats.NewestEvent == nil || ts.After(*stats.NewestEvent) {
			stats.NewestEvent = &ts
		}
	}
	if info, err := os.Stat(j.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}
