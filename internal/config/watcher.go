package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and the newly loaded config.
type ChangeFunc func(old, next *Config)

// Watcher keeps a config file loaded. [Watcher.Run] polls the file and
// [Watcher.Reload] forces a re-read, e.g. on SIGHUP. The callback fires only
// when the content changed and the new content is valid; an invalid edit is
// logged and the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	log      *slog.Logger
	reload   chan struct{}

	// syncMu serializes reads of the file and callbacks.
	syncMu sync.Mutex
	mtime  time.Time
	hash   [sha256.Size]byte

	mu      sync.Mutex
	current *Config
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for reload messages.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads the config at path. Nothing is watched until Run is
// called.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
		reload:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.hash, w.mtime = snap.cfg, snap.hash, snap.mtime
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx ends and returns nil then.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.logSync(w.Sync(false))
		case <-w.reload:
			w.logSync(w.Sync(true))
		}
	}
}

// Reload asks a running watcher to re-read the file even if its
// modification time did not change. It never blocks.
func (w *Watcher) Reload() {
	select {
	case w.reload <- struct{}{}:
	default:
	}
}

func (w *Watcher) logSync(changed bool, err error) {
	switch {
	case err != nil:
		w.log.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
	case changed:
		w.log.Info("config watcher: configuration reloaded", "path", w.path)
	}
}

// Sync re-reads the file when its modification time moved, or always when
// force is set, and reports whether a new config became current. The
// callback has returned by the time Sync does.
func (w *Watcher) Sync(force bool) (bool, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return false, err
		}
		if info.ModTime().Equal(w.mtime) {
			return false, nil
		}
	}

	snap, err := w.read()
	if err != nil {
		return false, err
	}
	w.mtime = snap.mtime
	if snap.hash == w.hash {
		// Touched without a content change.
		return false, nil
	}
	w.hash = snap.hash

	w.mu.Lock()
	old := w.current
	w.current = snap.cfg
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
	return true, nil
}

type snapshot struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// read stats, reads and parses the file. The modification time is taken
// before reading so a write during the read is picked up by the next poll.
func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
