package viewer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chazu/curvshade/pkg/logging"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the viewer whenever one of paths is written or replaced,
// until ctx is done. Directories are watched rather than files so that
// editors which save by rename are seen.
func (v *Viewer) Watch(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.Close()
			return fmt.Errorf("viewer: %w", err)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("viewer: watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(ev.Name)
				if err != nil || !watched[name] {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					logging.Logger().Debug("settings changed", "path", name, "op", ev.Op.String())
					// Reload logs its own failures.
					_ = v.Reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Logger().Warn("watcher error", "err", err)
			}
		}
	}()
	return nil
}
