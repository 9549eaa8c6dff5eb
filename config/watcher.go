package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thinhttp/thin-server/core/observability"
)

// Callback is invoked with the freshly loaded configuration when the
// watched file changes.
type Callback func(*Config)

// Watcher watches a configuration file and reloads it on change.
// Reloads that fail to parse or validate are logged and dropped; the
// last good configuration stays in effect.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	callback Callback
	logger   observability.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the delay that coalesces bursts of file events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, callback Callback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		fw:       fw,
		callback: callback,
		logger:   observability.NopLogger(),
		debounce: 100 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. Watching the directory rather than the file
// survives the rename dance editors and configmap mounts do on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fw.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", observability.Err(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected",
			observability.String("path", w.path),
			observability.Err(err),
		)
		return
	}

	w.logger.Info("config reloaded", observability.String("path", w.path))
	w.callback(cfg)
}
