// Package hestia provides a line-oriented section/key-value store for
// INI-style configuration files: it validates a file against a strict line
// grammar, loads it into an order-preserving buffer, answers lookups,
// applies incremental edits and writes the buffer back in one atomic step.
//
// # Architecture Overview
//
// Hestia is made of a small core and a few supporting subsystems:
//  1. **Dialect**: the line grammar (section brackets, separator, comment
//     marker, trimming, identifier policy and case sensitivity)
//  2. **Document**: the record buffer plus the section-position index that
//     every mutation keeps in sync
//  3. **Store**: a Document bound to a file, an encoding and a line ending
//  4. **Audit System**: buffered audit trail with SQLite and JSONL backends
//  5. **Watcher**: polling file watcher delivering parsed snapshots
//  6. **Binder and Options**: typed binding of values and flag-driven config
//
// # Quick Start
//
//	store, err := hestia.New("app.ini", hestia.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.LoadOrCreate(); err != nil {
//		log.Fatal(err)
//	}
//	timeout, err := store.ReadValue("Network", "Timeout")
//	if hestia.IsNotFound(err) {
//		timeout = "30"
//	}
//	if err := store.WriteKey("Network", "Timeout", timeout); err != nil {
//		log.Fatal(err)
//	}
//	if err := store.Save(); err != nil {
//		log.Fatal(err)
//	}
//
// # File Format
//
// With the default INI dialect:
//
//	; comment lines and blank lines are ignored
//	[Network]
//	Timeout=30
//	Host = example.org
//
// Any other line shape makes the whole file invalid; there is no partial
// load. Comments and blank lines are not kept, and on save one blank line
// is written before every section header except the first.
//
// # Dialects
//
// INIDialect accepts loose identifiers (letters, digits and inner spaces)
// and matches names case-insensitively. StrictDialect accepts
// [A-Za-z][A-Za-z0-9_]* identifiers and matches names exactly. Custom
// dialects change the tokens:
//
//	d := hestia.INIDialect()
//	d.Comment = "#"
//	d.Separator = ":"
//	doc, err := hestia.ParseString(text, d)
//
// # Section Index
//
// The Document keeps the buffer position of every section header. Inserting
// an entry at the end of a section shifts every later position by one and
// removing records shifts them back, so lookups never rescan the buffer for
// headers. Document.Check verifies the index against the buffer.
//
// # Error Handling
//
// Errors carry github.com/agilira/go-errors codes:
//
//	if hestia.HasCode(err, hestia.ErrCodeKeyNotFound) {
//		// use a default
//	}
//
// Loads fail with ErrCodeFileNotFound, ErrCodeIOError, ErrCodeEncodingError
// or ErrCodeMalformedFile (with the offending line number in the context).
// Invalid names and values are rejected with ErrCodeInvalidIdentifier and
// ErrCodeInvalidValue before anything is changed.
//
// # Concurrency
//
// Document and Store are not safe for concurrent mutation; serialize
// writers and hand readers a Snapshot. AuditLogger and Watcher are safe for
// concurrent use.
//
// # Configuration
//
// Config can be built directly, from HESTIA_* environment variables
// (LoadConfigFromEnv), from a strict-dialect config file (LoadConfigFile),
// from all of those layered (LoadConfigMultiSource) or from command-line
// flags (Options).
package hestia
