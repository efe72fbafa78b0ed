// watch.go: Polling watcher delivering freshly parsed documents
//
// The Watcher polls os.Stat for each watched file and, when the size or
// modification time changes, parses the file with the configured dialect
// and encoding and hands the result to the file's callback. Callbacks run
// on the polling goroutine and receive an independent *Document that is
// safe to keep.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hestia

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// ChangeEvent describes one observed change of a watched file.
type ChangeEvent struct {
	Path       string
	DetectedAt time.Time
	ModTime    time.Time
	Size       int64
	Created    bool
	Deleted    bool

	// Document is the parsed content, nil when Deleted is set or Err is
	// not nil.
	Document *Document
	Err      error
}

// UpdateCallback receives change events for one watched file.
type UpdateCallback func(ChangeEvent)

type fileStat struct {
	modTime time.Time
	size    int64
	exists  bool
}

type watchedFile struct {
	path     string
	callback UpdateCallback
	lastStat fileStat
}

// Watcher polls files and reports their parsed content on change.
type Watcher struct {
	config *Config
	codec  textCodec
	audit  *AuditLogger

	files   map[string]*watchedFile
	filesMu sync.RWMutex

	lifecycleMu sync.Mutex
	running     atomic.Bool
	stopCh      chan struct{}
	stoppedCh   chan struct{}
}

// NewWatcher creates a stopped watcher. audit may be nil.
func NewWatcher(config Config, audit *AuditLogger) (*Watcher, error) {
	cfg := config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := lookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		config: cfg,
		codec:  codec,
		audit:  audit,
		files:  make(map[string]*watchedFile),
	}, nil
}

// Watch adds path to the watch list. The file need not exist yet; its
// creation is reported as a change.
func (w *Watcher) Watch(path string, callback UpdateCallback) error {
	if callback == nil {
		return errors.New(ErrCodeInvalidConfig, "callback cannot be nil")
	}
	if err := validateWatchPath(path); err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid file path").
			WithContext("path", path)
	}

	initial, err := statFile(absPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, ErrCodeIOError, "failed to stat file").
			WithContext("path", absPath)
	}

	w.filesMu.Lock()
	w.files[absPath] = &watchedFile{path: absPath, callback: callback, lastStat: initial}
	w.filesMu.Unlock()

	w.audit.Log(AuditInfo, "watch_start", absPath, nil)
	return nil
}

// Unwatch removes path from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid file path").
			WithContext("path", path)
	}
	w.filesMu.Lock()
	delete(w.files, absPath)
	w.filesMu.Unlock()
	return nil
}

// WatchedFiles returns the number of watched files.
func (w *Watcher) WatchedFiles() int {
	w.filesMu.RLock()
	defer w.filesMu.RUnlock()
	return len(w.files)
}

// Start begins polling until ctx is done or Stop is called. Once ctx is
// done the watcher reports itself stopped and may be started again.
func (w *Watcher) Start(ctx context.Context) error {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()
	if w.running.Load() {
		return errors.New(ErrCodeWatcherBusy, "watcher is already running")
	}
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.running.Store(true)
	go w.watchLoop(ctx, w.stopCh, w.stoppedCh)
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.lifecycleMu.Lock()
	if !w.running.Load() {
		w.lifecycleMu.Unlock()
		return errors.New(ErrCodeWatcherStopped, "watcher is not running")
	}
	w.running.Store(false)
	stopCh, stoppedCh := w.stopCh, w.stoppedCh
	w.lifecycleMu.Unlock()

	close(stopCh)
	<-stoppedCh
	return nil
}

// IsRunning reports whether the polling loop is active.
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

func (w *Watcher) watchLoop(ctx context.Context, stopCh, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.exitOnCancel(stoppedCh)
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.pollFiles()
		}
	}
}

// exitOnCancel marks the watcher stopped when the loop owning stoppedCh
// ends because its context is done. A concurrent Stop or a newer Start
// already owns the state and is left alone.
func (w *Watcher) exitOnCancel(stoppedCh chan struct{}) {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()
	if w.stoppedCh == stoppedCh {
		w.running.Store(false)
	}
}

func (w *Watcher) pollFiles() {
	w.filesMu.RLock()
	files := make([]*watchedFile, 0, len(w.files))
	for _, wf := range w.files {
		files = append(files, wf)
	}
	w.filesMu.RUnlock()

	for _, wf := range files {
		w.checkFile(wf)
	}
}

// checkFile compares the current stat with the last one and dispatches an
// event on any difference.
func (w *Watcher) checkFile(wf *watchedFile) {
	current, err := statFile(wf.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.config.ErrorHandler(errors.Wrap(err, ErrCodeIOError, "failed to stat file").
				WithContext("path", wf.path))
			return
		}
		if wf.lastStat.exists {
			wf.lastStat = fileStat{}
			w.dispatch(wf, ChangeEvent{Path: wf.path, DetectedAt: timecache.CachedTime(), Deleted: true})
		}
		return
	}

	created := !wf.lastStat.exists
	if !created && current.modTime.Equal(wf.lastStat.modTime) && current.size == wf.lastStat.size {
		return
	}
	wf.lastStat = current

	event := ChangeEvent{
		Path:       wf.path,
		DetectedAt: timecache.CachedTime(),
		ModTime:    current.modTime,
		Size:       current.size,
		Created:    created,
	}
	event.Document, event.Err = loadDocument(wf.path, w.codec, w.config.Dialect, w.config.parseOptions())
	w.dispatch(wf, event)
}

func (w *Watcher) dispatch(wf *watchedFile, event ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.audit.Log(AuditWarn, "callback_panic", wf.path, map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			w.config.ErrorHandler(errors.New(ErrCodeIOError, fmt.Sprintf("watch callback panicked: %v", r)).
				WithContext("path", wf.path))
		}
	}()

	details := map[string]interface{}{"size": event.Size, "deleted": event.Deleted}
	if event.Err != nil {
		details["error"] = event.Err.Error()
	}
	w.audit.Log(AuditInfo, "file_changed", wf.path, details)
	wf.callback(event)
}

func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{modTime: info.ModTime(), size: info.Size(), exists: true}, nil
}

// validateWatchPath rejects paths with traversal segments, control
// characters or an unreasonable length.
func validateWatchPath(path string) error {
	if path == "" {
		return errors.New(ErrCodeInvalidConfig, "empty path not allowed")
	}
	if len(path) > 4096 {
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("path too long (max 4096 characters): %d", len(path)))
	}
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return errors.New(ErrCodeInvalidConfig, "path contains a parent directory reference").
				WithContext("path", path)
		}
	}
	for _, r := range path {
		if r < 32 || r == 127 {
			return errors.New(ErrCodeInvalidConfig, "path contains control characters").
				WithContext("path", path)
		}
	}
	return nil
}
