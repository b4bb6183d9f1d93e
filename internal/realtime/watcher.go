package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UpdateStream yields the IDs of accounts as they are modified. The mongo
// repository backs it with a change stream.
type UpdateStream interface {
	WatchUpdates(ctx context.Context) (<-chan string, error)
}

// Watcher pumps account-update events from the stream into the hub.
type Watcher struct {
	stream UpdateStream
	hub    *Hub
	logger zerolog.Logger
}

func NewWatcher(stream UpdateStream, hub *Hub, logger zerolog.Logger) *Watcher {
	return &Watcher{stream: stream, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled, reopening the stream with backoff when
// it drops.
func (w *Watcher) Run(ctx context.Context) {
	backoff := time.Second
	for {
		ch, err := w.stream.WatchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("realtime: open update stream failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for userID := range ch {
			w.hub.NotifyUserUpdate(userID)
		}
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn().Msg("realtime: update stream closed, reopening")
	}
}
