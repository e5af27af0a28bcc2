package router

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cached client whenever one of paths is written,
// created, renamed or removed, so edits made by another process (the CLI,
// a text editor) take effect on the next request. The parent directories
// are watched because editors often replace files rather than write them.
// Watch blocks until ctx is done.
func (r *Router) Watch(ctx context.Context, paths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating settings watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		watched[p] = true
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching settings dir: %w", err)
		}
		dirs[dir] = true
	}

	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] || event.Op&ops == 0 {
				continue
			}
			r.logger.Debug("settings changed on disk", "path", event.Name, "op", event.Op.String())
			r.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("settings watcher error: %w", err)
		}
	}
}
