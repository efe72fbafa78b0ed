// Command handlers for the Hestia CLI
//
// Every handler that edits a file loads it, applies one mutation and saves
// it atomically, unless --dry-run asks only for the resulting diff.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/hestia"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleGet prints one value.
func (m *Manager) handleGet(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "get <file> <section> <key>", 3)
	if err != nil {
		return err
	}
	filePath, section, key := args[0], args[1], args[2]
	m.auditLogger.LogCommand("get", filePath, map[string]interface{}{"section": section, "key": key})

	store, err := m.loadStore(ctx, filePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	value, err := store.ReadValue(section, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, value)
	return nil
}

// handleSet writes one key and saves.
func (m *Manager) handleSet(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "set <file> <section> <key> [value]", 3)
	if err != nil {
		return err
	}
	filePath, section, key := args[0], args[1], args[2]
	// an omitted value writes an empty one ("key=")
	value := ctx.GetArg(3)
	m.auditLogger.LogCommand("set", filePath, map[string]interface{}{"section": section, "key": key})

	store, err := m.loadStore(ctx, filePath, ctx.GetFlagBool("create"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.WriteKey(section, key, value); err != nil {
		return err
	}
	return m.commit(ctx, store, fmt.Sprintf("Set %s.%s = %s in %s", section, key, value, filePath))
}

// handleDelete removes one key and saves.
func (m *Manager) handleDelete(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "delete <file> <section> <key>", 3)
	if err != nil {
		return err
	}
	filePath, section, key := args[0], args[1], args[2]
	m.auditLogger.LogCommand("delete", filePath, map[string]interface{}{"section": section, "key": key})

	store, err := m.loadStore(ctx, filePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteKey(section, key); err != nil {
		return err
	}
	return m.commit(ctx, store, fmt.Sprintf("Deleted %s.%s from %s", section, key, filePath))
}

// handleClear removes a section, or only its entries with --keep-header.
func (m *Manager) handleClear(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "clear <file> <section>", 2)
	if err != nil {
		return err
	}
	filePath, section := args[0], args[1]
	keepHeader := ctx.GetFlagBool("keep-header")
	m.auditLogger.LogCommand("clear", filePath, map[string]interface{}{
		"section":     section,
		"keep_header": keepHeader,
	})

	store, err := m.loadStore(ctx, filePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.ClearSection(section, !keepHeader); err != nil {
		return err
	}
	what := "Removed section"
	if keepHeader {
		what = "Cleared section"
	}
	return m.commit(ctx, store, fmt.Sprintf("%s %s in %s", what, section, filePath))
}

// commit saves the store, or prints its pending diff under --dry-run.
func (m *Manager) commit(ctx *orpheus.Context, store *hestia.Store, done string) error {
	if ctx.GetFlagBool("dry-run") {
		changes, err := store.Changes()
		if err != nil {
			return err
		}
		if !hestia.HasDifferences(changes) {
			fmt.Fprintln(m.out, "No changes")
			return nil
		}
		m.printDiff(changes)
		return nil
	}

	if err := checkWritable(store.Path()); err != nil {
		return errors.Wrap(err, hestia.ErrCodeIOError, "cannot write "+store.Path())
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintln(m.out, done)
	return nil
}

// handleSections lists section names in file order.
func (m *Manager) handleSections(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "sections <file>", 1)
	if err != nil {
		return err
	}
	m.auditLogger.LogCommand("sections", args[0], nil)

	store, err := m.loadStore(ctx, args[0], false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	names, err := store.ReadSectionNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(m.out, name)
	}
	return nil
}

// handleList prints the entries of one section.
func (m *Manager) handleList(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "list <file> <section>", 2)
	if err != nil {
		return err
	}
	filePath, section := args[0], args[1]
	m.auditLogger.LogCommand("list", filePath, map[string]interface{}{"section": section})

	store, err := m.loadStore(ctx, filePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.ReadEntries(section)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(m.out, "Section %s has no entries\n", section)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(m.out, "%s=%s\n", e.Key, e.Value)
	}
	return nil
}

// handleValidate checks a file against the grammar, and with --deep also
// against duplicate names.
func (m *Manager) handleValidate(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "validate <file>", 1)
	if err != nil {
		return err
	}
	filePath := args[0]
	m.auditLogger.LogCommand("validate", filePath, nil)

	store, err := m.openStore(ctx, filePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dialect := store.Config().Dialect.Name()
	if err := store.Validate(); err != nil {
		fmt.Fprintf(m.out, "Invalid %s file: %v\n", dialect, err)
		return err
	}

	if ctx.GetFlagBool("deep") {
		if err := store.Load(); err != nil {
			return err
		}
		doc, err := store.Snapshot()
		if err != nil {
			return err
		}
		if err := doc.Check(); err != nil {
			return err
		}
		if dups := doc.Duplicates(); len(dups) > 0 {
			for _, d := range dups {
				fmt.Fprintf(m.out, "Duplicate: %s\n", d)
			}
			return errors.New(hestia.ErrCodeDuplicateSection,
				fmt.Sprintf("%d duplicate name(s) in %s", len(dups), filePath))
		}
	}

	fmt.Fprintf(m.out, "Valid %s file: %s\n", dialect, filePath)
	return nil
}

// handleDiff compares the normalized content of two files.
func (m *Manager) handleDiff(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "diff <file> <other>", 2)
	if err != nil {
		return err
	}
	m.auditLogger.LogCommand("diff", args[0], map[string]interface{}{"other": args[1]})

	var contents [2][]string
	for i, path := range args {
		store, err := m.loadStore(ctx, path, false)
		if err != nil {
			return err
		}
		contents[i], err = store.Lines()
		_ = store.Close()
		if err != nil {
			return err
		}
	}

	diff := hestia.DiffLines(contents[0], contents[1])
	if !hestia.HasDifferences(diff) {
		fmt.Fprintln(m.out, "No differences")
		return nil
	}
	m.printDiff(diff)
	return nil
}

// handleExport writes a file as YAML to a path or, with "-", to the output.
func (m *Manager) handleExport(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "export <file> <out.yaml|->", 2)
	if err != nil {
		return err
	}
	filePath, outPath := args[0], args[1]
	m.auditLogger.LogCommand("export", filePath, map[string]interface{}{"output": outPath})

	store, err := m.loadStore(ctx, filePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	doc, err := store.Snapshot()
	if err != nil {
		return err
	}
	data, err := hestia.ExportYAML(doc)
	if err != nil {
		return err
	}

	if outPath == "-" {
		_, err := m.out.Write(data)
		return err
	}
	if err := checkWritable(outPath); err != nil {
		return errors.Wrap(err, hestia.ErrCodeIOError, "cannot write "+outPath)
	}
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return errors.Wrap(err, hestia.ErrCodeIOError, "failed to write "+outPath)
	}
	fmt.Fprintf(m.out, "Exported %s -> %s\n", filePath, outPath)
	return nil
}

// handleImport writes a file from YAML.
func (m *Manager) handleImport(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "import <in.yaml> <file>", 2)
	if err != nil {
		return err
	}
	inPath, filePath := args[0], args[1]
	m.auditLogger.LogCommand("import", filePath, map[string]interface{}{"input": inPath})

	if _, err := os.Stat(filePath); err == nil && !ctx.GetFlagBool("force") {
		return errors.New(hestia.ErrCodeIOError, "file already exists (use --force): "+filePath)
	}

	data, err := os.ReadFile(inPath) // #nosec G304 -- path named by the user on the command line
	if err != nil {
		return errors.Wrap(err, hestia.ErrCodeIOError, "failed to read "+inPath)
	}

	store, err := m.openStore(ctx, filePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	doc, err := hestia.ImportYAML(data, store.Config().Dialect)
	if err != nil {
		return err
	}
	if err := store.Replace(doc); err != nil {
		return err
	}
	if err := store.Save(); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Imported %s -> %s (%d sections)\n", inPath, filePath, len(doc.SectionNames()))
	return nil
}

// handleWatch reports changes until interrupted or --max-events is reached.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	args, err := requireArgs(ctx, "watch <file>", 1)
	if err != nil {
		return err
	}
	filePath := args[0]
	interval, err := time.ParseDuration(ctx.GetFlagString("interval"))
	if err != nil {
		return errors.New(hestia.ErrCodeInvalidConfig, fmt.Sprintf("invalid interval: %v", err))
	}
	maxEvents := ctx.GetFlagInt("max-events")
	verbose := ctx.GetFlagBool("verbose")
	m.auditLogger.LogCommand("watch", filePath, map[string]interface{}{"interval": interval.String()})

	config, err := m.storeConfig(ctx)
	if err != nil {
		return err
	}
	config.PollInterval = interval
	watcher, err := hestia.NewWatcher(config, m.auditLogger)
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	events := make(chan hestia.ChangeEvent)
	err = watcher.Watch(filePath, func(event hestia.ChangeEvent) {
		select {
		case events <- event:
		case <-runCtx.Done():
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(runCtx); err != nil {
		return err
	}
	defer func() {
		cancel()
		_ = watcher.Stop()
	}()

	fmt.Fprintf(m.out, "Watching %s (interval: %v)\n", filePath, interval)
	for seen := 0; maxEvents <= 0 || seen < maxEvents; seen++ {
		select {
		case <-runCtx.Done():
			return nil
		case event := <-events:
			m.printChange(event, verbose)
		}
	}
	return nil
}

func (m *Manager) printChange(event hestia.ChangeEvent, verbose bool) {
	switch {
	case event.Deleted:
		fmt.Fprintf(m.out, "File removed: %s\n", event.Path)
	case event.Err != nil:
		fmt.Fprintf(m.out, "File changed: %s (invalid: %v)\n", event.Path, event.Err)
	default:
		names := event.Document.SectionNames()
		fmt.Fprintf(m.out, "File changed: %s (%d sections)\n", event.Path, len(names))
		if verbose {
			fmt.Fprintf(m.out, "  sections: %s\n", strings.Join(names, ", "))
		}
	}
}

// handleAuditQuery prints matching audit events, newest first.
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	if m.auditLogger == nil {
		return errors.New(hestia.ErrCodeInvalidAuditConfig, "audit logging not enabled")
	}

	since, err := parseAge(ctx.GetFlagString("since"))
	if err != nil {
		return errors.Wrap(err, hestia.ErrCodeInvalidConfig, "invalid --since")
	}
	events, err := m.auditLogger.QueryEvents(hestia.AuditQuery{
		Since:     time.Now().Add(-since),
		Event:     ctx.GetFlagString("event"),
		FilePath:  ctx.GetFlagString("file"),
		SessionID: ctx.GetFlagString("session"),
		Limit:     ctx.GetFlagInt("limit"),
	})
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Fprintln(m.out, "No audit events found")
		return nil
	}
	for _, e := range events {
		target := e.FilePath
		if e.Section != "" {
			target += " " + e.Section
			if e.Key != "" {
				target += "." + e.Key
			}
		}
		fmt.Fprintf(m.out, "%s %-8s %-16s %s\n",
			e.Timestamp.Format(time.RFC3339), e.Level, e.Event, target)
	}
	return nil
}

// handleAuditCleanup removes old audit events.
func (m *Manager) handleAuditCleanup(ctx *orpheus.Context) error {
	if m.auditLogger == nil {
		return errors.New(hestia.ErrCodeInvalidAuditConfig, "audit logging not enabled")
	}

	olderThan, err := parseAge(ctx.GetFlagString("older-than"))
	if err != nil {
		return errors.Wrap(err, hestia.ErrCodeInvalidConfig, "invalid --older-than")
	}
	dryRun := ctx.GetFlagBool("dry-run")
	count, err := m.auditLogger.Cleanup(olderThan, dryRun)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(m.out, "Would delete %d audit event(s)\n", count)
	} else {
		fmt.Fprintf(m.out, "Deleted %d audit event(s)\n", count)
	}
	return nil
}

// handleAuditStats prints a summary of the audit trail.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	if m.auditLogger == nil {
		return errors.New(hestia.ErrCodeInvalidAuditConfig, "audit logging not enabled")
	}
	stats, err := m.auditLogger.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Backend: %s (%s)\n", stats.Backend, stats.Path)
	fmt.Fprintf(m.out, "Events: %d\n", stats.TotalEvents)
	for level, n := range stats.EventsByLevel {
		fmt.Fprintf(m.out, "  %s: %d\n", level, n)
	}
	return nil
}

// handleInfo displays the effective configuration.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	config, err := hestia.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Hestia section/key store\n")
	fmt.Fprintf(m.out, "Version: %s\n", Version)
	fmt.Fprintf(m.out, "Dialect: %s\n", config.Dialect.Name())
	fmt.Fprintf(m.out, "Encoding: %s\n", config.Encoding)
	fmt.Fprintf(m.out, "Line ending: %s\n", config.LineEnding)

	if ctx.GetFlagBool("verbose") {
		result := config.ValidateDetailed()
		fmt.Fprintf(m.out, "\nConfiguration: %s\n", result)
		for _, w := range result.Warnings {
			fmt.Fprintf(m.out, "  warning: %s\n", w)
		}
		fmt.Fprintf(m.out, "Reject duplicates: %v\n", config.RejectDuplicates)
		fmt.Fprintf(m.out, "Poll interval: %v\n", config.PollInterval)
		fmt.Fprintf(m.out, "Audit logging: %v\n", m.auditLogger != nil)
		fmt.Fprintf(m.out, "Default audit path: %s\n", hestia.DefaultAuditPath())
	}
	return nil
}

const commandNames = "get set delete clear sections list validate diff export import watch audit info completion"

// handleCompletion generates shell completion scripts.
func (m *Manager) handleCompletion(ctx *orpheus.Context) error {
	shell := ctx.GetArg(0)

	switch shell {
	case "bash":
		fmt.Fprintf(m.out, "# Bash completion for hestia\n")
		fmt.Fprintf(m.out, "# Add to ~/.bashrc: source <(hestia completion bash)\n")
		fmt.Fprintf(m.out, "_hestia_completion() {\n")
		fmt.Fprintf(m.out, "  COMPREPLY=($(compgen -W '%s' -- \"${COMP_WORDS[COMP_CWORD]}\"))\n", commandNames)
		fmt.Fprintf(m.out, "}\n")
		fmt.Fprintf(m.out, "complete -F _hestia_completion hestia\n")
	case "zsh":
		fmt.Fprintf(m.out, "# Zsh completion for hestia\n")
		fmt.Fprintf(m.out, "# Add to ~/.zshrc: source <(hestia completion zsh)\n")
		fmt.Fprintf(m.out, "#compdef hestia\n")
		fmt.Fprintf(m.out, "_hestia() {\n")
		fmt.Fprintf(m.out, "  _arguments '1: :(%s)'\n", commandNames)
		fmt.Fprintf(m.out, "}\n")
	case "fish":
		fmt.Fprintf(m.out, "# Fish completion for hestia\n")
		fmt.Fprintf(m.out, "complete -c hestia -f -a '%s'\n", commandNames)
	default:
		return errors.New(hestia.ErrCodeInvalidConfig, fmt.Sprintf("unsupported shell: %s", shell))
	}
	return nil
}
