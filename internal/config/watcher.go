package config

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ScoringWatcher watches a scoring config file and invokes a callback with
// every successfully parsed revision. A revision that fails to parse or
// validate is logged and skipped; the previous constants stay in effect.
type ScoringWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchScoring starts watching path. onReload is called from the watcher
// goroutine with each valid new config; the callee owns synchronization.
func WatchScoring(path string, onReload func(*ScoringConfig)) (*ScoringWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: editors and atomic-rename
	// writers replace the inode, which silently drops a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &ScoringWatcher{path: path, watcher: fw, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadScoringConfig(path)
				if err != nil {
					log.Printf("WARNING: scoring config reload skipped: %v", err)
					continue
				}
				log.Printf("scoring config reloaded from %s", path)
				onReload(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("WARNING: scoring config watcher: %v", err)
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *ScoringWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
