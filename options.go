// options.go: Command-line options producing a store Config
//
// Options registers the store settings as flash-flags flags so that an
// embedding application can expose them on its own command line, with
// HESTIA_* (or <APP>_*) environment variables as a fallback.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// ErrHelpRequested is returned by Parse when -h or --help is present.
var ErrHelpRequested = errors.New(ErrCodeInvalidConfig, "help requested")

// Options is a flag set describing one store Config.
type Options struct {
	flags   *flashflags.FlagSet
	appName string
}

// NewOptions registers the store flags under appName.
func NewOptions(appName string) *Options {
	if appName == "" {
		appName = "hestia"
	}
	fs := flashflags.New(appName)
	fs.String("dialect", "ini", "Line grammar: ini or strict")
	fs.String("separator", "", "Key/value separator overriding the dialect")
	fs.String("comment", "", "Comment marker overriding the dialect")
	fs.Bool("no-trim", false, "Keep surrounding whitespace in names and values")
	fs.String("case", "auto", "Name matching: auto, sensitive or insensitive")
	fs.String("encoding", "utf-8", "File text encoding")
	fs.String("line-ending", LineEndingLF, "Line ending written on save: lf or crlf")
	fs.String("file-mode", "0644", "Permissions of saved files (octal)")
	fs.Bool("reject-duplicates", false, "Fail loads with repeated sections or keys")
	fs.Duration("poll-interval", time.Second, "Watcher poll interval")
	fs.Bool("audit", false, "Record store activity in the audit trail")
	fs.String("audit-file", "", "Audit output (.jsonl selects JSONL, otherwise SQLite)")
	fs.String("audit-level", "INFO", "Minimum audit level: INFO, WARN, CRITICAL or SECURITY")
	fs.SetEnvPrefix(strings.ToUpper(appName))

	return &Options{flags: fs, appName: appName}
}

// SetDescription sets the description shown in help output.
func (o *Options) SetDescription(description string) *Options {
	o.flags.SetDescription(description)
	return o
}

// SetVersion sets the version shown in help output.
func (o *Options) SetVersion(version string) *Options {
	o.flags.SetVersion(version)
	return o
}

// Parse parses args. It returns ErrHelpRequested without parsing when help
// is asked for.
func (o *Options) Parse(args []string) error {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return ErrHelpRequested
		}
	}
	if err := o.flags.Parse(args); err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}
	return nil
}

// ParseArgs parses os.Args[1:].
func (o *Options) ParseArgs() error {
	return o.Parse(os.Args[1:])
}

// Config builds and validates the Config described by the parsed flags.
func (o *Options) Config() (*Config, error) {
	dialect, ok := DialectByName(o.flags.GetString("dialect"))
	if !ok {
		return nil, errors.New(ErrCodeInvalidConfig, "unknown dialect "+o.flags.GetString("dialect"))
	}
	if sep := o.flags.GetString("separator"); sep != "" {
		dialect.Separator = sep
	}
	if comment := o.flags.GetString("comment"); comment != "" {
		dialect.Comment = comment
	}
	if o.flags.GetBool("no-trim") {
		dialect.Trim = false
	}
	switch strings.ToLower(o.flags.GetString("case")) {
	case "", "auto":
	case "sensitive":
		dialect.CaseSensitive = true
	case "insensitive":
		dialect.CaseSensitive = false
	default:
		return nil, errors.New(ErrCodeInvalidConfig, "case must be auto, sensitive or insensitive")
	}

	mode, err := strconv.ParseUint(o.flags.GetString("file-mode"), 8, 32)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid file-mode "+o.flags.GetString("file-mode"))
	}
	level, ok := ParseAuditLevel(o.flags.GetString("audit-level"))
	if !ok {
		return nil, errors.New(ErrCodeInvalidConfig, "invalid audit-level "+o.flags.GetString("audit-level"))
	}

	config := (&Config{
		Dialect:          dialect,
		Encoding:         o.flags.GetString("encoding"),
		LineEnding:       o.flags.GetString("line-ending"),
		FileMode:         os.FileMode(mode),
		RejectDuplicates: o.flags.GetBool("reject-duplicates"),
		PollInterval:     o.flags.GetDuration("poll-interval"),
		Audit: AuditConfig{
			Enabled:    o.flags.GetBool("audit"),
			OutputFile: o.flags.GetString("audit-file"),
			MinLevel:   level,
		},
	}).WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// PrintUsage prints help for every registered flag.
func (o *Options) PrintUsage() {
	o.flags.PrintHelp()
}

// FlagNames returns the registered flag names, sorted.
func (o *Options) FlagNames() []string {
	var names []string
	o.flags.VisitAll(func(flag *flashflags.Flag) {
		names = append(names, flag.Name())
	})
	sort.Strings(names)
	return names
}

// FlagToEnvKey converts a flag name to its environment variable,
// e.g. "line-ending" to "HESTIA_LINE_ENDING".
func (o *Options) FlagToEnvKey(flagName string) string {
	return strings.ToUpper(o.appName + "_" + strings.ReplaceAll(flagName, "-", "_"))
}
