package client

import (
	"context"
	"fmt"
)

// Stream delivers the raw messages of one session's event stream in the
// order the server produced them. Next returns io.EOF when the server
// closed the stream cleanly. Close is idempotent and safe to call from any
// goroutine; it unblocks a pending Next.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// Dialer opens a Stream scoped to a session. The context bounds the whole
// lifetime of the returned stream.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Stream, error)
}

// Transport names a live event transport.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// NewDialer returns the dialer for the named transport.
func NewDialer(t Transport, httpClient *HTTPClient, token string) (Dialer, error) {
	switch t {
	case TransportSSE, "":
		return NewSSEDialer(httpClient), nil
	case TransportWebSocket:
		return NewWSDialer(DeriveWSBase(httpClient.BaseURL()), token), nil
	}
	return nil, fmt.Errorf("unknown transport %q", t)
}
