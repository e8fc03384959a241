// Package watcher reloads the YAML configuration when the file changes on
// disk. Editors and orchestrators rewrite config files in different ways
// (in-place write, rename-over, remove+create), so the watcher observes the
// parent directory rather than the file itself and debounces the event burst
// a single save produces.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/AntiHubAPI/internal/config"
)

// reloadDelay coalesces the event burst of one save into one reload.
const reloadDelay = 250 * time.Millisecond

// Watcher observes a config file and calls the reload callback with each
// successfully parsed new configuration.
type Watcher struct {
	configPath string
	onReload   func(*config.Config)

	// lastModTime suppresses reloads when the file content did not change.
	lastModTime time.Time
}

// NewWatcher creates a watcher for the config file at path. onReload runs on
// the watcher goroutine; it must not block for long.
func NewWatcher(path string, onReload func(*config.Config)) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		configPath: absPath,
		onReload:   onReload,
	}
	if info, errStat := os.Stat(absPath); errStat == nil {
		w.lastModTime = info.ModTime()
	}
	return w, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error only when the underlying notifier cannot be created.
func (w *Watcher) Run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if errClose := notifier.Close(); errClose != nil {
			log.Debugf("config watcher close: %v", errClose)
		}
	}()

	// Watch the directory: rename-over saves replace the inode the file
	// watch would be bound to.
	if err = notifier.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}
	log.Debugf("watching config file %s", w.configPath)

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()
	reloadCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDelay, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})
		case <-reloadCh:
			w.reload()
		case errWatch, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watcher error: %v", errWatch)
		}
	}
}

// relevant reports whether the event concerns the watched file and a
// content-changing operation.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	eventPath, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return eventPath == w.configPath
}

// reload parses the file and invokes the callback. A file that fails to
// parse or validate keeps the previous configuration active.
func (w *Watcher) reload() {
	info, err := os.Stat(w.configPath)
	if err != nil {
		log.Warnf("config file unavailable after change: %v", err)
		return
	}
	if info.ModTime().Equal(w.lastModTime) {
		return
	}
	w.lastModTime = info.ModTime()

	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return
	}
	log.Infof("config file changed, applying %d account(s)", len(cfg.Accounts))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
