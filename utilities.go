// utilities.go: Convenience watchers for Hestia files
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"context"
	"os"

	"github.com/agilira/go-errors"
)

// WatchDocument watches path and calls callback with every valid version
// of the file, starting with the current one when it exists. Parse errors
// go to config.ErrorHandler and deletions are only audited; callback never
// sees a nil document.
//
// The returned watcher is already running and stops with ctx or Stop.
// audit may be nil.
//
// Example:
//
//	w, err := hestia.WatchDocument(ctx, "app.ini", hestia.Config{}, nil, func(doc *hestia.Document) {
//	    if port, err := doc.Value("server", "port"); err == nil {
//	        // Handle port change
//	    }
//	})
func WatchDocument(ctx context.Context, path string, config Config, audit *AuditLogger, callback func(*Document)) (*Watcher, error) {
	if callback == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "callback cannot be nil")
	}

	watcher, err := NewWatcher(config, audit)
	if err != nil {
		return nil, err
	}

	handler := watcher.config.ErrorHandler
	watchCallback := func(event ChangeEvent) {
		switch {
		case event.Deleted:
			watcher.audit.Log(AuditWarn, "document_deleted", event.Path, nil)
		case event.Err != nil:
			handler(event.Err)
		default:
			callback(event.Document)
		}
	}

	if err := watcher.Watch(path, watchCallback); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		initial, err := loadDocument(path, watcher.codec, watcher.config.Dialect, watcher.config.parseOptions())
		if err != nil {
			return nil, err
		}
		callback(initial)
	}

	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher, nil
}

// SimpleFileWatcher calls callback with the path each time the file is
// created or modified, ignoring its content.
func SimpleFileWatcher(ctx context.Context, path string, callback func(path string)) (*Watcher, error) {
	watcher, err := NewWatcher(Config{}, nil)
	if err != nil {
		return nil, err
	}

	watchCallback := func(event ChangeEvent) {
		if !event.Deleted {
			callback(event.Path)
		}
	}

	if err := watcher.Watch(path, watchCallback); err != nil {
		return nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		return nil, err
	}
	return watcher, nil
}
