package client

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestSSEStreamFrames(t *testing.T) {
	body := ": connected\n" +
		"retry: 3000\n\n" +
		"id: 7\nevent: update\ndata: {\"stage\":\"planning\"}\n\n" +
		"data: {\"stage\":\n" +
		"data: \"retrieving\"}\n\n" +
		"data:no-space\r\n\r\n" +
		"data: unterminated"
	s := NewSSEStream(sseBody(body))

	msg, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"stage":"planning"}`, string(msg))

	msg, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "{\"stage\":\n\"retrieving\"}", string(msg), "data lines are joined with newlines")

	msg, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "no-space", string(msg))

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF, "a frame without its blank line is dropped")
}

func TestSSEStreamEmptyDataFrame(t *testing.T) {
	s := NewSSEStream(sseBody("data:\n\n"))
	msg, err := s.Next()
	require.NoError(t, err)
	assert.Empty(t, msg)
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestSSEStreamCloseIsIdempotent(t *testing.T) {
	body := &countingCloser{Reader: strings.NewReader("")}
	cancelled := 0
	s := newSSEStream(body, func() { cancelled++ })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, body.closes)
	assert.Equal(t, 1, cancelled)
}
