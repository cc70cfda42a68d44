package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/framegrid/internal/ctxlog"
)

// settleDelay coalesces the bursts of events editors produce when saving.
const settleDelay = 200 * time.Millisecond

// flowWatcher reports changes to one flow file.
type flowWatcher struct {
	w       *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// watchFlow watches path. The parent directory is watched so that files
// replaced by rename are still seen.
func watchFlow(ctx context.Context, path string) (*flowWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	fw := &flowWatcher{w: w, changes: make(chan struct{}, 1), done: make(chan struct{})}
	go fw.loop(ctx, abs)
	ctxlog.FromContext(ctx).Info("👀 Watching flow file.", "path", abs)
	return fw, nil
}

// Changes delivers one value per settled burst of writes.
func (fw *flowWatcher) Changes() <-chan struct{} { return fw.changes }

// Close stops watching.
func (fw *flowWatcher) Close() error {
	err := fw.w.Close()
	<-fw.done
	return err
}

func (fw *flowWatcher) loop(ctx context.Context, path string) {
	defer close(fw.done)
	logger := ctxlog.FromContext(ctx)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("Flow file event.", "op", ev.Op.String())
			settle = time.After(settleDelay)
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error.", "error", err)
		case <-settle:
			settle = nil
			select {
			case fw.changes <- struct{}{}:
			default:
			}
		}
	}
}
