package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vnykmshr/gopermit/pkg/common/validation"
	"github.com/vnykmshr/gopermit/pkg/permit"
)

// Target is the surface a reloaded or scheduled policy is applied to.
// permit.Limiter satisfies it.
type Target interface {
	SetPolicy(permit.Policy) error
}

// WatcherConfig configures policy file watching.
type WatcherConfig struct {
	// Path is the policy file to watch.
	Path string

	// DebounceInterval is the quiet period after the last file event
	// before the reload fires (default: 100ms). Editors often emit
	// bursts of writes and renames for a single save.
	DebounceInterval time.Duration

	// OnApply is called after a reloaded policy has been applied.
	OnApply func(permit.Policy)

	// OnError is called when a reload fails. The previous policy stays
	// in effect.
	OnError func(error)
}

// Watcher hot-reloads a policy file into a Target. It watches the
// file's directory rather than the file itself, because atomic saves
// replace the inode and would silently detach a file watch.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Target
	config   WatcherConfig
	logger   *slog.Logger
	debounce *debouncer

	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher that applies the file's base policy to
// target whenever the file changes.
func NewWatcher(target Target, config WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if err := validation.ValidateNotNil("config", "target", target); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("config", "path", config.Path); err != nil {
		return nil, err
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  watcher,
		target:   target,
		config:   config,
		logger:   logger.With("component", "config.watcher"),
		debounce: newDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch processes file events until the context is cancelled or Stop is
// called. It blocks.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.watcher.Add(filepath.Dir(w.config.Path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.config.Path), err)
	}

	w.logger.Info("policy watcher started",
		"path", w.config.Path,
		"debounce_ms", w.config.DebounceInterval.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy watcher stopped", "reason", "context cancelled")
			return nil

		case <-w.stopCh:
			w.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.logger.Debug("policy file event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			// Keep watching; transient fs errors are not fatal.
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// Stop halts watching and releases the fsnotify watcher. Safe to call
// more than once and before Watch.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stopCh) })
	if running {
		<-w.doneCh
	}
	w.debounce.stop()
	return w.watcher.Close()
}

// shouldProcess filters directory events down to content changes of the
// watched file.
func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.config.Path)
}

// reload loads, validates, and applies the policy file. A file that
// fails to load or validate leaves the previous policy in effect.
func (w *Watcher) reload() {
	f, err := Load(w.config.Path)
	if err != nil {
		w.logger.Error("policy reload failed", "path", w.config.Path, "error", err)
		if w.config.OnError != nil {
			w.config.OnError(err)
		}
		return
	}

	p := f.Policy()
	if err := w.target.SetPolicy(p); err != nil {
		w.logger.Error("policy apply failed", "path", w.config.Path, "error", err)
		if w.config.OnError != nil {
			w.config.OnError(err)
		}
		return
	}

	w.logger.Info("policy reloaded",
		"path", w.config.Path,
		"fill_rate", p.FillRate,
		"normal_capacity", p.NormalCapacity,
		"burst_capacity", p.BurstCapacity)
	if w.config.OnApply != nil {
		w.config.OnApply(p)
	}
}

// debouncer coalesces rapid event bursts: the callback runs once, after
// a quiet interval with no further triggers.
type debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

// trigger arms the debouncer. Each call resets the quiet period.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// stop cancels any pending callback. Safe to call more than once.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
