package plugin

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

const debounceInterval = 500 * time.Millisecond

// RefreshFunc is invoked after plugin directories change on disk. The
// callback runs on the watcher goroutine after a debounce window.
type RefreshFunc func()

// Watcher monitors the plugin directories and triggers a registry refresh
// when manifests appear, change, or disappear.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	refresh   RefreshFunc
	logger    pslog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches every directory in dirs that exists. Missing
// directories are skipped; they are picked up on the next restart.
func NewWatcher(dirs Directories, refresh RefreshFunc, logger pslog.Logger) (*Watcher, error) {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fsW,
		refresh:   refresh,
		logger:    logger,
		done:      make(chan struct{}),
	}
	for _, dir := range append(append([]string{}, dirs.User...), dirs.BuiltIn...) {
		if err := fsW.Add(dir); err != nil {
			if logger != nil {
				logger.Warn("plugin directory not watched", "dir", dir, "err", err)
			}
		}
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop coalesces bursts of filesystem events into a single refresh.
func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceInterval)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if w.refresh != nil {
				w.refresh()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("plugin watcher error", "err", err)
			}
		}
	}
}
