// store.go: File-bound section/key store
//
// A Store owns one Document loaded from one file. The file is touched only
// by Load, LoadOrCreate, IsValid, Validate, Reset, Save and SaveAs, each of
// which performs a single bulk read or write. Everything else works on the
// in-memory buffer.
//
// A Store is not safe for concurrent mutation. Readers that need to run
// alongside a writer should take a Snapshot.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	goerrors "errors"
	"io/fs"
	"os"
	"slices"

	"github.com/agilira/go-errors"
	"github.com/google/uuid"
)

// Store binds a Document to a file path and a Config.
type Store struct {
	path    string
	config  *Config
	codec   textCodec
	eol     string
	audit   *AuditLogger
	ownsLog bool
	session string

	// doc is nil while the store is unloaded.
	doc *Document

	// saved is the serialized form last read from or written to path.
	saved []string
}

// New creates an unloaded store for path. When config.Audit.Enabled is set
// the store opens its own AuditLogger, released by Close.
func New(path string, config Config) (*Store, error) {
	s, err := newStore(path, config)
	if err != nil {
		return nil, err
	}
	if s.config.Audit.Enabled {
		logger, err := NewAuditLogger(s.config.Audit)
		if err != nil {
			return nil, err
		}
		logger.SetErrorHandler(s.config.ErrorHandler)
		s.audit = logger
		s.ownsLog = true
	}
	return s, nil
}

// NewWithAudit creates an unloaded store that records its activity on a
// shared logger. The logger is not closed by Store.Close.
func NewWithAudit(path string, config Config, audit *AuditLogger) (*Store, error) {
	s, err := newStore(path, config)
	if err != nil {
		return nil, err
	}
	s.audit = audit
	return s, nil
}

func newStore(path string, config Config) (*Store, error) {
	if path == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "store path cannot be empty")
	}
	cfg := config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := lookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	eol, err := lineTerminator(cfg.LineEnding)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:    path,
		config:  cfg,
		codec:   codec,
		eol:     eol,
		session: uuid.Must(uuid.NewV7()).String(),
	}, nil
}

// Path returns the file the store is bound to.
func (s *Store) Path() string { return s.path }

// SessionID identifies this store's events in the audit trail.
func (s *Store) SessionID() string { return s.session }

// Config returns a copy of the effective configuration.
func (s *Store) Config() Config { return *s.config }

// IsLoaded reports whether a document is held in memory.
func (s *Store) IsLoaded() bool { return s.doc != nil }

// Load reads and parses the file, replacing any previous content. On
// failure the store is left unloaded.
func (s *Store) Load() error {
	doc, err := loadDocument(s.path, s.codec, s.config.Dialect, s.config.parseOptions())
	if err != nil {
		s.unload()
		s.audit.LogStoreEvent(AuditWarn, s.session, EventLoadRejected, s.path, map[string]interface{}{
			"error": err.Error(),
			"code":  ErrorCode(err),
		})
		return err
	}
	s.adopt(doc)
	s.audit.LogStoreEvent(AuditInfo, s.session, EventStoreLoaded, s.path, map[string]interface{}{
		"sections": len(doc.sections),
		"records":  doc.Len(),
	})
	return nil
}

// LoadOrCreate behaves like Load but treats a missing file as empty.
// Nothing is written until Save.
func (s *Store) LoadOrCreate() error {
	if _, err := os.Stat(s.path); goerrors.Is(err, fs.ErrNotExist) {
		s.create()
		return nil
	}
	return s.Load()
}

func (s *Store) create() {
	s.doc = NewDocument(s.config.Dialect)
	s.saved = nil
	s.audit.LogStoreEvent(AuditInfo, s.session, EventStoreCreated, s.path, nil)
}

// Validate checks the file without retaining its content. A failure
// leaves the store unloaded.
func (s *Store) Validate() error {
	lines, err := readLines(s.path, s.codec)
	if err == nil {
		_, err = ParseWith(slices.Values(lines), s.config.Dialect, s.config.parseOptions())
	}
	if err != nil {
		s.unload()
		return err
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (s *Store) IsValid() bool {
	return s.Validate() == nil
}

// Reset discards unsaved changes by reloading the file.
func (s *Store) Reset() error {
	if err := s.Load(); err != nil {
		return err
	}
	s.audit.LogStoreEvent(AuditInfo, s.session, EventStoreReset, s.path, nil)
	return nil
}

// ReadValue returns the value of key in section.
func (s *Store) ReadValue(section, key string) (string, error) {
	if err := s.requireLoaded(); err != nil {
		return "", err
	}
	return s.doc.Value(section, key)
}

// ReadSectionNames returns the section names in file order.
func (s *Store) ReadSectionNames() ([]string, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return s.doc.SectionNames(), nil
}

// ReadEntries returns the entries of section in file order.
func (s *Store) ReadEntries(section string) ([]Entry, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return s.doc.Entries(section)
}

// WriteKey sets key in section, creating either as needed.
func (s *Store) WriteKey(section, key, value string) error {
	if err := s.requireLoaded(); err != nil {
		return err
	}
	old, _ := s.doc.Value(section, key)
	if err := s.doc.WriteKey(section, key, value); err != nil {
		return err
	}
	s.audit.LogMutation(s.session, EventKeyWritten, s.path, section, key, old, value)
	return nil
}

// DeleteKey removes key from section.
func (s *Store) DeleteKey(section, key string) error {
	if err := s.requireLoaded(); err != nil {
		return err
	}
	old, _ := s.doc.Value(section, key)
	if err := s.doc.DeleteKey(section, key); err != nil {
		return err
	}
	s.audit.LogMutation(s.session, EventKeyDeleted, s.path, section, key, old, "")
	return nil
}

// ClearSection removes the entries of section, and the header when
// removeHeader is set.
func (s *Store) ClearSection(section string, removeHeader bool) error {
	if err := s.requireLoaded(); err != nil {
		return err
	}
	if err := s.doc.ClearSection(section, removeHeader); err != nil {
		return err
	}
	s.audit.LogMutation(s.session, EventSectionCleared, s.path, section, "", "", "")
	return nil
}

// Replace swaps the whole buffer for a copy of doc, which must use the
// store's dialect. The file is untouched until Save.
func (s *Store) Replace(doc *Document) error {
	if doc == nil {
		return errors.New(ErrCodeInvalidConfig, "document cannot be nil")
	}
	if doc.Dialect() != s.config.Dialect {
		return errors.New(ErrCodeInvalidConfig, "document dialect does not match the store").
			WithContext("document_dialect", doc.Dialect().Name()).
			WithContext("store_dialect", s.config.Dialect.Name())
	}
	if err := doc.Check(); err != nil {
		return err
	}
	s.doc = doc.Clone()
	s.audit.LogStoreEvent(AuditCritical, s.session, EventStoreReplaced, s.path, map[string]interface{}{
		"records": s.doc.Len(),
	})
	return nil
}

// Lines returns the serialized buffer.
func (s *Store) Lines() ([]string, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return s.doc.Lines(), nil
}

// Snapshot returns an independent copy of the loaded document.
func (s *Store) Snapshot() (*Document, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return s.doc.Clone(), nil
}

// HasChanges reports whether the buffer differs from what was last loaded
// or saved.
func (s *Store) HasChanges() bool {
	if s.doc == nil {
		return false
	}
	return !slices.Equal(s.doc.Lines(), s.saved)
}

// Changes diffs the buffer against the last loaded or saved state.
func (s *Store) Changes() ([]DiffLine, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	return DiffLines(s.saved, s.doc.Lines()), nil
}

// Diff renders Changes. An empty string means there are none.
func (s *Store) Diff() (string, error) {
	diff, err := s.Changes()
	if err != nil || !HasDifferences(diff) {
		return "", err
	}
	return FormatDiff(diff), nil
}

// Save rewrites the whole file from the buffer.
func (s *Store) Save() error {
	lines, err := s.write(s.path)
	if err != nil {
		return err
	}
	s.saved = lines
	s.audit.LogStoreEvent(AuditInfo, s.session, EventStoreSaved, s.path, map[string]interface{}{
		"lines": len(lines),
	})
	return nil
}

// SaveAs writes the buffer to path. The store stays bound to its own path
// and HasChanges is unaffected.
func (s *Store) SaveAs(path string) error {
	if path == "" {
		return errors.New(ErrCodeInvalidConfig, "target path cannot be empty")
	}
	lines, err := s.write(path)
	if err != nil {
		return err
	}
	s.audit.LogStoreEvent(AuditInfo, s.session, EventStoreSaved, path, map[string]interface{}{
		"lines":  len(lines),
		"source": s.path,
	})
	return nil
}

// Close releases the audit logger when the store opened it.
func (s *Store) Close() error {
	if s.ownsLog {
		s.ownsLog = false
		return s.audit.Close()
	}
	return s.audit.Flush()
}

func (s *Store) write(path string) ([]string, error) {
	if err := s.requireLoaded(); err != nil {
		return nil, err
	}
	lines := s.doc.Lines()
	data, err := encodeLines(lines, s.codec, s.eol)
	if err != nil {
		return nil, err
	}
	if err := atomicWrite(path, data, s.config.FileMode); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) adopt(doc *Document) {
	s.doc = doc
	s.saved = doc.Lines()
}

func (s *Store) unload() {
	s.doc = nil
	s.saved = nil
}

func (s *Store) requireLoaded() error {
	if s.doc == nil {
		return errors.New(ErrCodeNotLoaded, "store is not loaded").
			WithContext("path", s.path)
	}
	return nil
}
