package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch calls onChange whenever the credentials file at path is created,
// rewritten, renamed or removed, until ctx is cancelled. The parent directory
// is watched rather than the file itself because FileRepo replaces the file
// with a rename on every Save.
func Watch(ctx context.Context, path string, onChange func()) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials folder: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&relevant == 0 {
					continue
				}
				notifyChange(onChange)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Err(err).Str("path", path).Msg("credentials watcher error")
			}
		}
	}()
	return nil
}

func notifyChange(onChange func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("credentials change handler panicked")
		}
	}()
	onChange()
}
