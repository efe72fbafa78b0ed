// Package cli provides the command-line interface for Hestia section/key stores.
//
// The CLI is built on the Orpheus framework with git-style subcommands:
// reads (get, sections, list), edits saved atomically (set, delete, clear),
// whole-file operations (validate, diff, export, import, watch) and audit
// trail maintenance.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/hestia"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/mattn/go-isatty"
)

// Version of the hestia command.
const Version = "1.0.0"

// Manager routes hestia commands.
type Manager struct {
	app         *orpheus.App
	auditLogger *hestia.AuditLogger
	out         io.Writer
	colorize    bool
}

// NewManager creates a CLI manager writing to standard output.
func NewManager() *Manager {
	app := orpheus.New("hestia").
		SetDescription("Section/key configuration file tool").
		SetVersion(Version)

	manager := &Manager{app: app}
	manager.WithOutput(os.Stdout)

	manager.setupStoreCommands()
	manager.setupFileCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithAudit records every command and store mutation on auditLogger and
// enables the audit commands.
func (m *Manager) WithAudit(auditLogger *hestia.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// WithOutput redirects command output. Diffs are coloured only when w is a
// terminal.
func (m *Manager) WithOutput(w io.Writer) *Manager {
	m.out = w
	m.colorize = false
	if f, ok := w.(*os.File); ok {
		m.colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return m
}

// Run executes the command line args (without the program name).
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// addFormatFlags registers the flags shared by every command that opens a file.
func addFormatFlags(cmd *orpheus.Command) *orpheus.Command {
	return cmd.
		AddFlag("dialect", "d", "", "Line grammar (ini|strict), default from HESTIA_DIALECT or ini").
		AddFlag("encoding", "e", "", "Text encoding, default from HESTIA_ENCODING or utf-8")
}

// setupStoreCommands configures reads and edits of a single file.
func (m *Manager) setupStoreCommands() {
	// get <file> <section> <key>
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("get", "Print the value of a key").
			SetHandler(m.handleGet)))

	// set <file> <section> <key> [value] [--create] [--dry-run]
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("set", "Write a key (empty when value is omitted), creating its section if needed").
			AddBoolFlag("create", "c", false, "Create the file if it does not exist").
			AddBoolFlag("dry-run", "n", false, "Show the resulting diff without saving").
			SetHandler(m.handleSet)))

	// delete <file> <section> <key> [--dry-run]
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("delete", "Delete a key").
			AddBoolFlag("dry-run", "n", false, "Show the resulting diff without saving").
			SetHandler(m.handleDelete)))

	// clear <file> <section> [--keep-header] [--dry-run]
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("clear", "Remove a section and its entries").
			AddBoolFlag("keep-header", "k", false, "Remove only the entries").
			AddBoolFlag("dry-run", "n", false, "Show the resulting diff without saving").
			SetHandler(m.handleClear)))

	// sections <file>
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("sections", "List section names in file order").
			SetHandler(m.handleSections)))

	// list <file> <section>
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("list", "List the entries of a section").
			SetHandler(m.handleList)))
}

// setupFileCommands configures whole-file operations.
func (m *Manager) setupFileCommands() {
	// validate <file> [--deep]
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("validate", "Check a file against the line grammar").
			AddBoolFlag("deep", "", false, "Also report duplicate sections and keys").
			SetHandler(m.handleValidate)))

	// diff <file> <other>
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("diff", "Compare the normalized content of two files").
			SetHandler(m.handleDiff)))

	// export <file> <out.yaml|->
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("export", "Export a file as YAML").
			SetHandler(m.handleExport)))

	// import <in.yaml> <file>
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("import", "Write a file from YAML").
			AddBoolFlag("force", "f", false, "Overwrite an existing file").
			SetHandler(m.handleImport)))

	// watch <file> [--interval=1s] [--max-events=0]
	m.app.AddCommand(addFormatFlags(
		orpheus.NewCommand("watch", "Report changes to a file as they happen").
			AddFlag("interval", "i", "1s", "Polling interval").
			AddIntFlag("max-events", "m", 0, "Exit after this many changes (0 = until interrupted)").
			AddBoolFlag("verbose", "v", false, "Print the sections of every new version").
			SetHandler(m.handleWatch)))
}

// setupUtilityCommands configures audit maintenance and diagnostics.
func (m *Manager) setupUtilityCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail management")

	queryCmd := auditCmd.Subcommand("query", "Query audit events", m.handleAuditQuery)
	queryCmd.AddFlag("since", "s", "24h", "Time range (e.g., 24h, 7d, 2w)")
	queryCmd.AddFlag("event", "e", "", "Event name filter")
	queryCmd.AddFlag("file", "f", "", "File path filter")
	queryCmd.AddFlag("session", "", "", "Session id filter")
	queryCmd.AddIntFlag("limit", "l", 100, "Maximum results")

	cleanupCmd := auditCmd.Subcommand("cleanup", "Delete old audit events", m.handleAuditCleanup)
	cleanupCmd.AddFlag("older-than", "o", "30d", "Delete events older than")
	cleanupCmd.AddBoolFlag("dry-run", "d", false, "Only count what would be deleted")

	auditCmd.Subcommand("stats", "Show audit trail statistics", m.handleAuditStats)

	m.app.AddCommand(auditCmd)

	infoCmd := orpheus.NewCommand("info", "Show configuration and diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Include environment and audit details")
	m.app.AddCommand(infoCmd)

	completionCmd := orpheus.NewCommand("completion", "Generate shell completion scripts")
	completionCmd.SetHandler(m.handleCompletion)
	m.app.AddCommand(completionCmd)
}
