// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultTypeWatchDebounce is the default quiet period before a reload.
const DefaultTypeWatchDebounce = 200 * time.Millisecond

// TypeReloader reloads type definitions from a file.
//
// AtomStore implements this via ReloadTypes.
type TypeReloader interface {
	ReloadTypes(path string) (int, error)
}

// TypeFileWatcher reloads a type-definition file when it changes.
//
// Description:
//
//	Watches the file's directory, so editors that replace the file by
//	rename are picked up. Bursts of events are debounced into a single
//	reload. Each reload registers new types and resizes the index.
//
// Thread Safety:
//
//	Start and Stop are safe for concurrent use.
type TypeFileWatcher struct {
	path     string
	reloader TypeReloader
	debounce time.Duration
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
	reloads  int
	onReload func(added int, err error)
}

// NewTypeFileWatcher creates a watcher for path.
//
// Inputs:
//
//	path - Type-definition YAML file.
//	reloader - Receives reloads. Usually an *AtomStore.
//	debounce - Quiet period before reloading. Zero means the default.
//	logger - Logger. Nil means slog.Default().
//
// Outputs:
//
//	*TypeFileWatcher - Not yet started.
//	error - If the fsnotify watcher cannot be created.
func NewTypeFileWatcher(path string, reloader TypeReloader, debounce time.Duration, logger *slog.Logger) (*TypeFileWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultTypeWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &TypeFileWatcher{
		path:     absPath,
		reloader: reloader,
		debounce: debounce,
		logger:   logger.With(slog.String("types_file", absPath)),
		watcher:  w,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// OnReload sets a callback invoked after every reload attempt.
func (w *TypeFileWatcher) OnReload(fn func(added int, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Reloads returns the number of reload attempts so far.
func (w *TypeFileWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Start begins watching. It returns once the watch is registered.
//
// The watcher stops when ctx is done or Stop is called.
func (w *TypeFileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.loop(ctx)
	w.logger.Info("Watching type definitions")
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *TypeFileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		started := w.watching
		w.mu.Unlock()
		if started {
			<-w.stopped
		}
		w.watcher.Close()
	})
}

func (w *TypeFileWatcher) loop(ctx context.Context) {
	defer close(w.stopped)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Type watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *TypeFileWatcher) reload() {
	added, err := w.reloader.ReloadTypes(w.path)
	if err != nil {
		w.logger.Error("Reloading type definitions failed",
			slog.Int("added", added),
			slog.String("error", err.Error()))
	}

	w.mu.Lock()
	w.reloads++
	fn := w.onReload
	w.mu.Unlock()

	if fn != nil {
		fn(added, err)
	}
}
