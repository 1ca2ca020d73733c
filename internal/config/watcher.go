package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Resolver's caches when the configuration source
// changes on disk. The next Load after a change parses the new content
// under a bumped generation.
type Watcher struct {
	fsw      *fsnotify.Watcher
	resolver *Resolver
	path     string
	done     chan struct{}
}

// NewWatcher starts watching the source file. The parent directory is
// watched rather than the file itself so editors that rename-and-replace
// still trigger invalidation.
func NewWatcher(resolver *Resolver, path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		fsw:      fsw,
		resolver: resolver,
		path:     abs,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.resolver.Invalidate(w.path)
			log.Printf("[config] %s changed, cache invalidated (generation %d)", w.path, w.resolver.Generation(w.path))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
