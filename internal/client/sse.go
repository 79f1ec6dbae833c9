package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// SSEDialer opens text/event-stream connections through an HTTPClient.
type SSEDialer struct {
	http *HTTPClient
}

// NewSSEDialer creates a dialer sharing the client's base URL and token.
func NewSSEDialer(c *HTTPClient) *SSEDialer {
	return &SSEDialer{http: c}
}

// Dial sends GET /api/research/{id}/stream and returns once the response
// headers arrived.
func (d *SSEDialer) Dial(ctx context.Context, sessionID string) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.http.StreamURL(sessionID), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	d.http.setHeaders(req)

	resp, err := d.http.stream.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{Method: http.MethodGet, Path: req.URL.Path, Code: resp.StatusCode, Body: string(body)}
	}
	return newSSEStream(resp.Body, cancel), nil
}

// SSEStream parses server-sent event frames. Each frame's data lines are
// joined with "\n" and returned as one message; comments and the id, event
// and retry fields are ignored.
type SSEStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func newSSEStream(body io.ReadCloser, cancel context.CancelFunc) *SSEStream {
	return &SSEStream{body: body, reader: bufio.NewReader(body), cancel: cancel}
}

// NewSSEStream wraps an already-open event-stream body.
func NewSSEStream(body io.ReadCloser) *SSEStream {
	return newSSEStream(body, func() {})
}

// Next blocks until a complete frame with data arrives.
func (s *SSEStream) Next() ([]byte, error) {
	var data []string
	hasData := false
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// A frame not terminated by a blank line is incomplete.
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}
		if field == "data" {
			data = append(data, value)
			hasData = true
		}
	}
}

// Close releases the connection. Safe to call more than once.
func (s *SSEStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
