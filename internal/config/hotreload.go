package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher watches a set of files for changes and invokes onChange (debounced)
// when any of them are written, created, or renamed. Modeled on the
// teacher's pkg/hotreload.ConfigReloader, trimmed to what the project
// registry hot-reload path actually needs: no backups, no hashing, just
// debounced change notification.
type Watcher struct {
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher over the given files. debounce coalesces
// bursts of filesystem events (editors often write-then-rename) into a
// single callback invocation per settle period.
func NewWatcher(files []string, debounce time.Duration, onChange func(path string), logger *logrus.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	for _, f := range files {
		if err := fsw.Add(f); err != nil {
			logger.WithError(err).WithField("file", f).Warn("hot-reload watcher: failed to watch file")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		logger:   logger,
		watcher:  fsw,
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var pending string

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = event.Name
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("hot-reload watcher error")
		case <-timerC(timer):
			w.onChange(pending)
			timer = nil
		case <-w.ctx.Done():
			return
		}
	}
}

// timerC returns t.C, or a nil channel (blocks forever) when t is nil, so
// the select above doesn't fire on a never-armed timer.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
