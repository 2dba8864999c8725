// Package watcher monitors the library directory and feeds newly dropped
// PDFs into the indexing pipeline.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Submitter queues one document for indexing. Satisfied by the pipeline
// orchestrator's Submit method.
type Submitter func(path, filename string) error

// Watcher turns filesystem events in the library directory into pipeline
// submissions.
type Watcher struct {
	fsw    *fsnotify.Watcher
	submit Submitter
	log    *slog.Logger

	// settle is how long a file must be quiet after its last write before
	// it is submitted; copies into the library arrive as many writes.
	settle time.Duration
}

func New(submit Submitter, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:    fsw,
		submit: submit,
		log:    log,
		settle: 500 * time.Millisecond,
	}, nil
}

// Watch monitors dir until the context is canceled.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.log.Info("watching library", "dir", dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if err := w.submit(path, filepath.Base(path)); err != nil {
					w.log.Warn("submit from watcher failed", "path", path, "error", err)
				} else {
					w.log.Info("queued from library", "path", path)
				}
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
