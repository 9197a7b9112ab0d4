package exchange

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 5 * time.Second
)

// WSHelper provides common WebSocket functionality
type WSHelper struct {
	URL         string
	DialTimeout time.Duration
}

// DialWS creates a WebSocket connection with timeout
func (w *WSHelper) DialWS(ctx context.Context) (*websocket.Conn, error) {
	timeout := w.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(cctx, w.URL, nil)
	return conn, err
}

// ReadLoop options. OnMessage errors end the loop. OnSignal runs on the
// reader's owner goroutine each time Signals fires, so it may write to conn.
type ReadLoop struct {
	OnMessage func([]byte) error
	Signals   <-chan struct{}
	OnSignal  func() error
}

// ReadWithPing reads WebSocket messages with periodic pings until ctx is
// done or the connection fails. Writes other than pings happen only in
// OnSignal, which keeps a single writer on conn.
func (w *WSHelper) ReadWithPing(ctx context.Context, conn *websocket.Conn, rl ReadLoop) error {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if rl.OnMessage != nil {
				if err := rl.OnMessage(b); err != nil {
					errCh <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-rl.Signals:
			if rl.OnSignal != nil {
				if err := rl.OnSignal(); err != nil {
					return err
				}
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}

// WriteJSON sends one frame with a write deadline.
func WriteJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// BuildQueryURL builds a URL with query parameters
func BuildQueryURL(base, path string, query url.Values) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String(), nil
}
