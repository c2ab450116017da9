package converter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch converts paths once, then converts each input again whenever it is
// written or re-created. It blocks until ctx is done.
func (c *Converter) Watch(ctx context.Context, paths []string) error {
	jobs := make(map[string]job)
	for _, j := range c.resolve(paths) {
		jobs[j.input] = j
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no convertible files to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched rather than files so editors that replace a
	// file on save are still seen.
	dirs := make(map[string]bool)
	for input := range jobs {
		dir := filepath.Dir(input)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	if _, err := c.Run(ctx, paths); err != nil {
		return err
	}
	c.logger.Info("Watching for changes.", "files", len(jobs), "dirs", len(dirs))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping watcher.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			j, watched := jobs[filepath.Clean(event.Name)]
			if !watched {
				continue
			}
			c.logger.Debug("Input changed.", "path", j.input, "op", event.Op.String())
			if res := c.convertFile(ctx, j); !res.OK {
				c.logger.Error("Re-conversion failed", "path", j.input, "error", res.Error)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("File watcher error", "error", err)
		}
	}
}
