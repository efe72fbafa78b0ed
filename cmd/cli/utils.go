// Helpers for the Hestia CLI
//
// Store setup from flags and environment, argument checks, diff output
// and age parsing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/hestia"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/fatih/color"
)

// storeConfig builds the store configuration for a command: HESTIA_*
// environment variables first, then the --dialect and --encoding flags.
func (m *Manager) storeConfig(ctx *orpheus.Context) (hestia.Config, error) {
	config, err := hestia.LoadConfigFromEnv()
	if err != nil {
		return hestia.Config{}, err
	}
	if name := ctx.GetFlagString("dialect"); name != "" {
		d, ok := hestia.DialectByName(name)
		if !ok {
			return hestia.Config{}, errors.New(hestia.ErrCodeInvalidConfig,
				fmt.Sprintf("unknown dialect %q (want ini or strict)", name))
		}
		config.Dialect = d
	}
	if enc := ctx.GetFlagString("encoding"); enc != "" {
		config.Encoding = enc
	}
	// The CLI records on its own logger only.
	config.Audit.Enabled = false
	return *config, nil
}

// openStore creates a store for path. The caller closes it.
func (m *Manager) openStore(ctx *orpheus.Context, path string) (*hestia.Store, error) {
	config, err := m.storeConfig(ctx)
	if err != nil {
		return nil, err
	}
	return hestia.NewWithAudit(path, config, m.auditLogger)
}

// loadStore opens and loads path; with create, a missing file is empty.
func (m *Manager) loadStore(ctx *orpheus.Context, path string, create bool) (*hestia.Store, error) {
	store, err := m.openStore(ctx, path)
	if err != nil {
		return nil, err
	}
	if create {
		err = store.LoadOrCreate()
	} else {
		err = store.Load()
	}
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// requireArgs returns the first n positional arguments or an error naming
// the usage.
func requireArgs(ctx *orpheus.Context, usage string, n int) ([]string, error) {
	args := make([]string, n)
	for i := range args {
		args[i] = ctx.GetArg(i)
		if args[i] == "" {
			return nil, errors.New(hestia.ErrCodeInvalidConfig, "usage: hestia "+usage)
		}
	}
	return args, nil
}

// printDiff writes a line diff, coloured when the output is a terminal.
func (m *Manager) printDiff(diff []hestia.DiffLine) {
	insert := fmt.Sprint
	remove := fmt.Sprint
	if m.colorize {
		green := color.New(color.FgGreen)
		green.EnableColor()
		red := color.New(color.FgRed)
		red.EnableColor()
		insert = green.Sprint
		remove = red.Sprint
	}
	for _, line := range diff {
		switch line.Op {
		case hestia.DiffInsert:
			fmt.Fprintln(m.out, insert("+"+line.Text))
		case hestia.DiffDelete:
			fmt.Fprintln(m.out, remove("-"+line.Text))
		default:
			fmt.Fprintln(m.out, " "+line.Text)
		}
	}
}

// ageUnits are the calendar units accepted on top of time.ParseDuration.
var ageUnits = map[byte]time.Duration{
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// parseAge reads an age such as "90m", "7d" or "2w". Day and week counts
// must be whole numbers.
func parseAge(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New(hestia.ErrCodeInvalidConfig, "empty duration")
	}
	unit, ok := ageUnits[s[len(s)-1]]
	if !ok {
		return time.ParseDuration(s)
	}
	n, err := strconv.ParseUint(s[:len(s)-1], 10, 32)
	if err != nil {
		return 0, errors.Wrap(err, hestia.ErrCodeInvalidConfig, fmt.Sprintf("invalid duration %q", s))
	}
	return time.Duration(n) * unit, nil
}

// checkWritable fails when path exists read-only, or when it does not
// exist and its parent is not a writable directory.
func checkWritable(path string) error {
	target := path
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		target = filepath.Dir(path)
		info, err = os.Stat(target)
	}
	switch {
	case err != nil:
		return errors.Wrap(err, hestia.ErrCodeIOError, "cannot access "+target)
	case target != path && !info.IsDir():
		return errors.New(hestia.ErrCodeIOError, target+" is not a directory")
	case info.Mode().Perm()&0o200 == 0:
		return errors.New(hestia.ErrCodeIOError, fmt.Sprintf("%s is read-only (%v)", target, info.Mode().Perm()))
	}
	return nil
}
