package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TokenSource yields the token to authenticate with, or "" when logged out.
type TokenSource interface {
	Token() string
}

// Listener maintains a client connection to the user-update channel and
// invokes the callback whenever the server signals that the account changed.
type Listener struct {
	url      string
	tokens   TokenSource
	onUpdate func(ctx context.Context)
	logger   zerolog.Logger
	dialer   *websocket.Dialer
}

func NewListener(url string, tokens TokenSource, onUpdate func(ctx context.Context), logger zerolog.Logger) *Listener {
	return &Listener{
		url:      url,
		tokens:   tokens,
		onUpdate: onUpdate,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// Run blocks until ctx is cancelled, redialing with backoff. While there is
// no session it idles instead of dialing.
func (l *Listener) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		token := l.tokens.Token()
		if token == "" {
			if !sleep(ctx, 2*time.Second) {
				return
			}
			continue
		}

		if l.connect(ctx, token) {
			backoff = time.Second
		}
		if !sleep(ctx, backoff) {
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// connect runs one connection lifetime and reports whether it got far enough
// to receive at least one server frame.
func (l *Listener) connect(ctx context.Context, token string) bool {
	conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		l.logger.Debug().Err(err).Msg("realtime: dial failed")
		return false
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(authMessage{Token: token}); err != nil {
		return false
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received
		}
		received = true

		var msg userUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "user_update" && l.onUpdate != nil {
			l.onUpdate(ctx)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
