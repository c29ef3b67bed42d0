// Package watcher reports changes to reference layer files for hot reload.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a settled change of one file.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once per settled file change.
type Handler func(ctx context.Context, event Event) error

type pendingEvent struct {
	lastSeen time.Time
	op       Operation
}

// Config holds watcher configuration.
type Config struct {
	Paths      []string      // Directories or files to watch
	Extensions []string      // File extensions to report, e.g. ".mbtiles"
	Debounce   time.Duration // Quiet period before an event is reported
}

// Watcher watches directories and files for reference layer changes.
// Bursts of writes to one file are reported as a single event once the file
// has been quiet for the debounce period.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	handler    Handler
	logger     *slog.Logger
	paths      []string
	files      map[string]bool
	extensions []string
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".mbtiles"}
	}

	exts := make([]string, len(cfg.Extensions))
	for i, ext := range cfg.Extensions {
		exts[i] = strings.ToLower(ext)
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		handler:    handler,
		logger:     logger,
		paths:      cfg.Paths,
		files:      make(map[string]bool),
		extensions: exts,
		debounce:   cfg.Debounce,
		pending:    make(map[string]*pendingEvent),
	}, nil
}

// Start starts watching the configured paths. A path with a known extension
// is treated as a single file: its directory is watched and only that file
// is reported.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		if err := w.AddPath(path); err != nil {
			w.logger.Warn("failed to watch path", "path", path, "error", err)
		}
	}

	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// AddPath adds a directory or file to watch.
func (w *Watcher) AddPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	dir := absPath
	if w.hasExtension(absPath) {
		dir = filepath.Dir(absPath)
		w.mu.Lock()
		w.files[absPath] = true
		w.mu.Unlock()
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.logger.Info("watching path", "path", absPath)
	return nil
}

// RemovePath stops watching a directory.
func (w *Watcher) RemovePath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	if err := w.fsWatcher.Remove(absPath); err != nil {
		return err
	}

	w.logger.Info("removed watch path", "path", absPath)
	return nil
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.record(event.Name, toOperation(event.Op), time.Now())

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// record adds a raw event to the pending set if the file is of interest.
func (w *Watcher) record(path string, op Operation, at time.Time) {
	if !w.relevant(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	existing, ok := w.pending[path]
	if !ok {
		w.pending[path] = &pendingEvent{lastSeen: at, op: op}
		return
	}

	existing.lastSeen = at
	switch {
	case existing.op == OpDelete && op == OpCreate:
		// Replaced by a new file.
		existing.op = OpCreate
	case op == OpDelete:
		existing.op = OpDelete
	}
}

func (w *Watcher) relevant(path string) bool {
	if !w.hasExtension(path) {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.files) == 0 {
		return true
	}
	if w.files[path] {
		return true
	}
	// Files inside explicitly watched directories are still reported.
	for _, p := range w.paths {
		if abs, err := filepath.Abs(p); err == nil && abs == filepath.Dir(path) {
			return true
		}
	}
	return false
}

func (w *Watcher) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			for _, event := range w.settled(now) {
				w.dispatch(ctx, event)
			}
		}
	}
}

// settled removes and returns the events that have been quiet long enough, ordered by path.
func (w *Watcher) settled(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, pending := range w.pending {
		if now.Sub(pending.lastSeen) < w.debounce {
			continue
		}
		delete(w.pending, path)
		events = append(events, Event{Path: path, Operation: pending.op})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

func (w *Watcher) dispatch(ctx context.Context, e Event) {
	w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())
	if err := w.handler(ctx, e); err != nil {
		w.logger.Error("handler error",
			"path", e.Path,
			"operation", e.Operation.String(),
			"error", err,
		)
	}
}

// toOperation converts fsnotify.Op to an Operation.
func toOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
