package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// WSDialer opens WebSocket event streams at {base}/api/research/{id}/ws.
type WSDialer struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
}

// NewWSDialer creates a dialer for the given ws:// or wss:// base URL.
func NewWSDialer(baseURL, token string) *WSDialer {
	return &WSDialer{baseURL: baseURL, token: token, dialer: websocket.DefaultDialer}
}

// URL returns the WebSocket URL for a session.
func (d *WSDialer) URL(sessionID string) string {
	return d.baseURL + "/api/research/" + url.PathEscape(sessionID) + "/ws"
}

// Dial connects and starts the keep-alive ping loop.
func (d *WSDialer) Dial(ctx context.Context, sessionID string) (Stream, error) {
	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	conn, resp, err := d.dialer.DialContext(ctx, d.URL(sessionID), header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &StatusError{Method: http.MethodGet, Path: d.URL(sessionID), Code: resp.StatusCode}
		}
		return nil, err
	}

	pingCtx, cancel := context.WithCancel(ctx)
	s := &WSStream{conn: conn, cancel: cancel}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	go s.pingLoop(pingCtx)
	return s, nil
}

// WSStream reads one event per text message.
type WSStream struct {
	conn   *websocket.Conn
	cancel context.CancelFunc

	writeMu sync.Mutex // serialises ping and close frames

	closeOnce sync.Once
	closeErr  error
}

// Next returns the next text message. A normal closure frame from the
// server is reported as io.EOF.
func (s *WSStream) Next() ([]byte, error) {
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if typ != websocket.TextMessage {
			continue
		}
		// Any inbound data proves the peer is alive.
		s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return data, nil
	}
}

// Close sends a close frame and tears down the connection. Safe to call
// more than once.
func (s *WSStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// pingLoop sends periodic pings until the context is cancelled or a write fails.
func (s *WSStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				slog.Debug("ws ping failed", "error", err)
				return
			}
		}
	}
}
