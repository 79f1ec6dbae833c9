// Package testserver runs a scripted research server for tests. Sessions
// replay a fixed list of stream messages over SSE or WebSocket, and the
// result endpoint can be told to fail a number of times before answering.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/research-assistant/monitor/internal/client"
)

// Session scripts one research session.
type Session struct {
	// Messages are sent verbatim, one per SSE data frame or WebSocket message.
	Messages []string
	// Hold keeps the stream open after the last message until the client
	// disconnects.
	Hold bool
	// StreamStatus, when non-zero, rejects the stream with this status.
	StreamStatus int

	// Result is served by GET /api/research/{id}. Nil means never ready.
	Result *client.SessionResult
	// ResultFailures is how many result requests answer 404 before Result
	// is served.
	ResultFailures int
}

// Server is an httptest server speaking the research API.
type Server struct {
	*httptest.Server

	// Token, when set, is required as a bearer token on every request.
	Token string
	// Template is used for sessions created through POST /api/research.
	Template Session

	mu          sync.Mutex
	sessions    map[string]*Session
	topics      map[string]string
	resultCalls map[string]int
	streamCalls map[string]int
	requestIDs  []string

	upgrader websocket.Upgrader
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		sessions:    make(map[string]*Session),
		topics:      make(map[string]string),
		resultCalls: make(map[string]int),
		streamCalls: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Post("/api/research", s.handleStart)
	r.Get("/api/research/{id}/stream", s.handleSSE)
	r.Get("/api/research/{id}/ws", s.handleWS)
	r.Get("/api/research/{id}", s.handleResult)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddSession registers a scripted session.
func (s *Server) AddSession(id string, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess
	s.sessions[id] = &cp
}

// ResultCalls returns how many result requests were made for id.
func (s *Server) ResultCalls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultCalls[id]
}

// StreamCalls returns how many stream connections were opened for id.
func (s *Server) StreamCalls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCalls[id]
}

// Topic returns the topic a session was started with.
func (s *Server) Topic(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[id]
}

// RequestIDs returns the X-Request-ID headers seen so far.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requestIDs))
	copy(out, s.requestIDs)
	return out
}

// Event encodes a stream message. A nil data is omitted.
func Event(stage, message string, data any) string {
	m := map[string]any{"stage": stage, "message": message}
	if data != nil {
		m["data"] = data
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("testserver: encode event: %v", err))
	}
	return string(b)
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			s.mu.Lock()
			s.requestIDs = append(s.requestIDs, id)
			s.mu.Unlock()
		}
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, client.ErrorResponse{Error: "Unauthorized."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) session(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req client.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		writeJSON(w, http.StatusBadRequest, client.ErrorResponse{Error: "Topic is required."})
		return
	}
	id := uuid.NewString()
	s.AddSession(id, s.Template)
	s.mu.Lock()
	s.topics[id] = req.Topic
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, client.StartResponse{SessionID: id, Status: "started"})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.session(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, client.ErrorResponse{Error: "Session not found."})
		return
	}
	s.mu.Lock()
	s.streamCalls[id]++
	s.mu.Unlock()
	if sess.StreamStatus != 0 {
		writeJSON(w, sess.StreamStatus, client.ErrorResponse{Error: "stream unavailable"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	fmt.Fprint(w, ": connected\nretry: 3000\n\n")
	flusher.Flush()
	for _, msg := range sess.Messages {
		for _, line := range strings.Split(msg, "\n") {
			fmt.Fprintf(w, "data: %s\n", line)
		}
		fmt.Fprint(w, "\n")
		flusher.Flush()
	}
	if sess.Hold {
		<-r.Context().Done()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.session(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, client.ErrorResponse{Error: "Session not found."})
		return
	}
	s.mu.Lock()
	s.streamCalls[id]++
	s.mu.Unlock()
	if sess.StreamStatus != 0 {
		writeJSON(w, sess.StreamStatus, client.ErrorResponse{Error: "stream unavailable"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, msg := range sess.Messages {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	if sess.Hold {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	s.resultCalls[id]++
	calls := s.resultCalls[id]
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok || sess.Result == nil || calls <= sess.ResultFailures {
		writeJSON(w, http.StatusNotFound, client.ErrorResponse{Error: "Session not found or still running."})
		return
	}
	writeJSON(w, http.StatusOK, sess.Result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
