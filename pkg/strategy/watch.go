package strategy

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long the watcher waits after the last write
// before reloading.
const DefaultWatchDebounce = 500 * time.Millisecond

// ReloadFunc receives the outcome of every reload.
type ReloadFunc func(changes Changes, err error)

// Watcher reloads a strategy file into a manager whenever it changes.
type Watcher[V any] struct {
	fs       *fsnotify.Watcher
	manager  *Manager[V]
	onReload ReloadFunc
	path     string
	debounce time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// WatchOption configures a Watcher.
type WatchOption func(*watchOptions)

type watchOptions struct {
	onReload ReloadFunc
	debounce time.Duration
}

// WithDebounce sets how long bursts of writes are coalesced.
// Default: DefaultWatchDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithOnReload registers a callback run after every reload attempt.
func WithOnReload(fn ReloadFunc) WatchOption {
	return func(o *watchOptions) {
		o.onReload = fn
	}
}

// NewWatcher creates a watcher for the strategy file at path.
// Watching starts with Start.
//
// Example:
//
//	w, err := strategy.NewWatcher(m, "cache.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
func NewWatcher[V any](m *Manager[V], path string, opts ...WatchOption) (*Watcher[V], error) {
	o := &watchOptions{debounce: DefaultWatchDebounce}
	for _, opt := range opts {
		opt(o)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher[V]{
		fs:       fsw,
		manager:  m,
		onReload: o.onReload,
		path:     filepath.Clean(path),
		debounce: o.debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start watches the file's directory, so editors that replace the file
// by renaming are followed too.
func (w *Watcher[V]) Start(ctx context.Context) error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop(context.WithoutCancel(ctx))
	return nil
}

// Stop ends watching and waits for an in-flight reload. It is idempotent.
func (w *Watcher[V]) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

// Reload loads the file and reconciles the manager with it.
func (w *Watcher[V]) Reload(ctx context.Context) (Changes, error) {
	log := w.manager.opts.logger

	f, err := LoadFile(w.path)
	if err != nil {
		log.WarnContext(ctx, "cache strategy file rejected",
			slog.String("path", w.path),
			slog.Any("error", err),
		)
		w.report(Changes{}, err)
		return Changes{}, err
	}

	changes, err := w.manager.Reconcile(ctx, f)
	if err != nil {
		log.WarnContext(ctx, "cache strategy reload incomplete",
			slog.String("path", w.path),
			slog.Any("error", err),
		)
	}
	w.report(changes, err)
	return changes, err
}

func (w *Watcher[V]) report(changes Changes, err error) {
	if w.onReload != nil {
		w.onReload(changes, err)
	}
}

func (w *Watcher[V]) loop(ctx context.Context) {
	defer w.wg.Done()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
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
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			_, _ = w.Reload(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.manager.opts.logger.WarnContext(ctx, "cache strategy watcher error",
				slog.String("path", w.path),
				slog.Any("error", err),
			)
		}
	}
}
