package specroot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/handoff"
)

// Watcher observes a spec root's outputs/ and handoffs/ directories and
// invokes a callback when artifacts appear, change, or vanish. The
// callback runs on the watcher goroutine; keep it short.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *zap.Logger
}

// NewWatcher watches one spec root. Missing subdirectories are created
// first so the watch never races bootstrap.
func NewWatcher(specDir string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, sub := range []string{
		filepath.Join(specDir, OutputsDir),
		filepath.Join(specDir, handoff.DirName),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			fs.Close()
			return nil, fmt.Errorf("create %s: %w", sub, err)
		}
		if err := fs.Add(sub); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch %s: %w", sub, err)
		}
	}
	return &Watcher{fs: fs, logger: logger}, nil
}

// Run blocks until the context is done, invoking onChange with the path
// of each created, written, renamed, or removed artifact.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug("artifact change", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			onChange(ev.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
