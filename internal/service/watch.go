package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the deck whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file on
// save are still seen. Reload failures are logged and the previous story
// stays live.
func (s *DeckService) Watch(ctx context.Context) error {
	abs, err := filepath.Abs(s.cfg.Path)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return err
	}

	go func() {
		defer fw.Close()

		// Saves arrive as bursts of events; reload once the burst settles.
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if err := s.Reload(ctx); err != nil {
					s.cfg.Logger.Error("deck reload failed", "err", err)
					continue
				}
				DefaultBus.Publish(Event{Type: EventReload, Message: "deck reloaded"})

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				s.cfg.Logger.Warn("deck watcher", "err", err)
			}
		}
	}()

	s.cfg.Logger.Info("watching deck", "path", abs)
	return nil
}
