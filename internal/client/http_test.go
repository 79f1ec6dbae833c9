package client_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/testserver"
)

func TestStartResearch(t *testing.T) {
	srv := testserver.New(t)
	hc := client.NewHTTPClient(srv.URL+"/", "", time.Second)

	resp, err := hc.StartResearch(context.Background(), "  graph neural networks  ")
	require.NoError(t, err)
	assert.Equal(t, "started", resp.Status)
	assert.Equal(t, "graph neural networks", srv.Topic(resp.SessionID))
}

func TestStartResearchBlankTopic(t *testing.T) {
	srv := testserver.New(t)
	hc := client.NewHTTPClient(srv.URL, "", time.Second)

	_, err := hc.StartResearch(context.Background(), "   ")
	var se *client.StartError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, srv.RequestIDs(), "a blank topic is rejected before any request")
}

func TestStartResearchServerError(t *testing.T) {
	srv := testserver.New(t)
	srv.Token = "secret"
	hc := client.NewHTTPClient(srv.URL, "wrong", time.Second)

	_, err := hc.StartResearch(context.Background(), "topic")
	var se *client.StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "start research: Unauthorized.", se.Error())
}

func TestGetResult(t *testing.T) {
	srv := testserver.New(t)
	srv.Token = "secret"
	srv.AddSession("s1", testserver.Session{
		Result:         &client.SessionResult{Topic: "RAG", FinalReport: "R"},
		ResultFailures: 1,
	})
	hc := client.NewHTTPClient(srv.URL, "secret", time.Second)

	_, err := hc.GetResult(context.Background(), "s1")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)

	r, err := hc.GetResult(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "RAG", r.Topic)

	ids := srv.RequestIDs()
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
}

func TestSSEDial(t *testing.T) {
	srv := testserver.New(t)
	srv.AddSession("s1", testserver.Session{Messages: []string{
		testserver.Event("planning", "Planning", nil),
		"line one\nline two",
	}})
	srv.AddSession("down", testserver.Session{StreamStatus: http.StatusServiceUnavailable})
	hc := client.NewHTTPClient(srv.URL, "", time.Second)
	d, err := client.NewDialer(client.TransportSSE, hc, "")
	require.NoError(t, err)

	stream, err := d.Dial(context.Background(), "s1")
	require.NoError(t, err)
	defer stream.Close()

	msg, err := stream.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"planning","message":"Planning"}`, string(msg))
	msg, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(msg))
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)

	_, err = d.Dial(context.Background(), "down")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
}

func TestWebSocketDial(t *testing.T) {
	srv := testserver.New(t)
	srv.Token = "secret"
	srv.AddSession("s1", testserver.Session{Messages: []string{
		testserver.Event("planning", "Planning", nil),
		testserver.Event("done", "Session complete.", nil),
	}})
	hc := client.NewHTTPClient(srv.URL, "secret", time.Second)
	d, err := client.NewDialer(client.TransportWebSocket, hc, "secret")
	require.NoError(t, err)

	stream, err := d.Dial(context.Background(), "s1")
	require.NoError(t, err)

	for _, stage := range []string{"planning", "done"} {
		msg, err := stream.Next()
		require.NoError(t, err)
		assert.Contains(t, string(msg), `"stage":"`+stage+`"`)
	}
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF, "a normal close ends the stream")

	stream.Close()
	stream.Close()

	_, err = d.Dial(context.Background(), "missing")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestNewDialerUnknownTransport(t *testing.T) {
	_, err := client.NewDialer("carrier-pigeon", client.NewHTTPClient("http://x", "", 0), "")
	assert.EqualError(t, err, `unknown transport "carrier-pigeon"`)
}
