package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileEvent describes one observed change to a watched file.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileOp is the kind of change observed.
type FileOp int

const (
	FileOpCreate FileOp = iota
	FileOpWrite
	FileOpRemove
)

func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "CREATE"
	case FileOpWrite:
		return "WRITE"
	case FileOpRemove:
		return "REMOVE"
	default:
		return "UNKNOWN"
	}
}

// FileWatcher polls configuration files for changes and invokes
// registered callbacks, debounced so editors that write in bursts trigger
// one reload. Polling keeps the watcher portable and dependency-free.
type FileWatcher struct {
	mu            sync.Mutex
	paths         []string
	pollInterval  time.Duration
	debounceDelay time.Duration
	callbacks     []func(FileEvent)
	lastMod       map[string]time.Time
	lastFired     map[string]time.Time
	running       bool
	stop          chan struct{}
	logger        *zap.Logger
}

// WatcherOption configures a FileWatcher.
type WatcherOption func(*FileWatcher)

// WithPollInterval sets the polling cadence.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.pollInterval = d }
}

// WithDebounceDelay sets the minimum gap between events for one path.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounceDelay = d }
}

// WithWatcherLogger sets the watcher's logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = logger }
}

// NewFileWatcher creates a watcher over the given paths.
func NewFileWatcher(paths []string, opts ...WatcherOption) *FileWatcher {
	w := &FileWatcher{
		paths:         paths,
		pollInterval:  2 * time.Second,
		debounceDelay: 500 * time.Millisecond,
		lastMod:       make(map[string]time.Time),
		lastFired:     make(map[string]time.Time),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnChange registers a callback invoked for each debounced event.
func (w *FileWatcher) OnChange(cb func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins polling until Stop is called or ctx is cancelled.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stop = make(chan struct{})
	for _, path := range w.paths {
		if info, err := os.Stat(path); err == nil {
			w.lastMod[path] = info.ModTime()
		}
	}
	stop := w.stop
	w.mu.Unlock()

	go w.loop(ctx, stop)
	return nil
}

// Stop ends polling. It is safe to call more than once.
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stop)
}

func (w *FileWatcher) loop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *FileWatcher) poll() {
	now := time.Now()
	var events []FileEvent

	w.mu.Lock()
	for _, path := range w.paths {
		info, err := os.Stat(path)
		last, known := w.lastMod[path]
		switch {
		case err != nil && known:
			delete(w.lastMod, path)
			events = append(events, FileEvent{Path: path, Op: FileOpRemove, Timestamp: now})
		case err != nil:
			// still absent
		case !known:
			w.lastMod[path] = info.ModTime()
			events = append(events, FileEvent{Path: path, Op: FileOpCreate, Timestamp: now})
		case info.ModTime().After(last):
			w.lastMod[path] = info.ModTime()
			if now.Sub(w.lastFired[path]) < w.debounceDelay {
				continue
			}
			events = append(events, FileEvent{Path: path, Op: FileOpWrite, Timestamp: now})
		}
	}
	for _, e := range events {
		w.lastFired[e.Path] = now
	}
	callbacks := make([]func(FileEvent), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, e := range events {
		w.logger.Debug("config file changed",
			zap.String("path", e.Path), zap.String("op", e.Op.String()))
		for _, cb := range callbacks {
			cb(e)
		}
	}
}
