package server

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of writes SQLite makes per commit.
const watchDebounce = 100 * time.Millisecond

// watchState re-reads the stored query whenever the state database changes
// on disk and hands it to the session as a remote change.
func (s *Server) watchState(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.statePath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch state directory", "dir", dir, "error", err)
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	base := filepath.Base(s.statePath)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				s.syncFromState(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// syncFromState pulls the stored query into the session.
func (s *Server) syncFromState(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	text, err := s.state.Get(ctx, s.key)
	if err != nil {
		s.logger.Error("failed to read stored query", "error", err)
		return
	}
	if s.session.RemoteChanged(text) {
		s.logger.Debug("query reloaded from state database")
	}
}
