// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package state

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates class records when their source files change on
// disk.
//
// # Description
//
// Watcher subscribes to filesystem events for every analyzed class file
// and calls Manager.InvalidateClassState when a watched file is written,
// removed or renamed. Invalidation marks the record stale; it is the
// caller's job to re-analyze before trusting the record again.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Watcher struct {
	manager *Manager
	fs      *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	classes map[string]string // absolute file path -> class name
	closed  bool
}

// NewWatcher creates a watcher bound to the given manager.
func NewWatcher(m *Manager, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		manager: m,
		fs:      fs,
		logger:  logger,
		classes: make(map[string]string),
	}
	go w.run()
	return w, nil
}

// Track registers all analyzed class files of the given state.
// Previously tracked files stay tracked.
func (w *Watcher) Track(s *ProjectState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if s == nil {
		return nil
	}

	for i := range s.JavaClasses {
		c := &s.JavaClasses[i]
		if c.FilePath == "" {
			continue
		}
		abs, err := filepath.Abs(c.FilePath)
		if err != nil {
			continue
		}
		if _, ok := w.classes[abs]; ok {
			continue
		}
		if err := w.fs.Add(abs); err != nil {
			w.logger.Warn("failed to watch class file",
				slog.String("path", abs),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.classes[abs] = c.Name
	}
	return nil
}

// Close stops event delivery and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.fs.Close()
}

// run consumes filesystem events until the watcher is closed.
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.invalidate(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// invalidate marks the class owning the changed path stale.
func (w *Watcher) invalidate(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	className, ok := w.classes[abs]
	w.mu.Unlock()
	if !ok {
		return
	}

	w.manager.InvalidateClassState(className)
	w.logger.Info("class invalidated after file change",
		slog.String("class", className),
		slog.String("path", abs),
	)
}
