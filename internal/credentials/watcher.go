package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// Watcher pushes the stored credential into a Sink whenever the store file
// changes, so `ouinet-shell credentials set` reaches a running shell.
type Watcher struct {
	store  *Store
	sink   Sink
	logger *slog.Logger

	lastEndpoint   string
	lastCredential string
}

// NewWatcher creates a Watcher for store.
func NewWatcher(store *Store, sink Sink, logger *slog.Logger) *Watcher {
	return &Watcher{
		store:  store,
		sink:   sink,
		logger: logfields.Or(logger).With("component", "credentials-watcher"),
	}
}

// Run watches until ctx is done. The store's directory is watched rather
// than the file, since atomic writes replace the file.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.store.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Seed with the current record so an unchanged file is not re-pushed.
	w.lastEndpoint, w.lastCredential, _ = w.store.Record()

	name := filepath.Clean(w.store.Path())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.push()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Credential watch error", logfields.Error(err))
		}
	}
}

func (w *Watcher) push() {
	endpoint, credential, ok := w.store.Record()
	if !ok {
		return
	}
	if endpoint == w.lastEndpoint && credential == w.lastCredential {
		return
	}
	w.lastEndpoint, w.lastCredential = endpoint, credential
	w.sink.SetCredentialsFor(endpoint, credential)
	w.logger.Info("Stored credential changed, updated engine", logfields.Endpoint(endpoint))
}
