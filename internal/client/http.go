package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned when the server answers with a non-success code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, strings.TrimSpace(e.Body))
}

// StartError is returned when the server refuses to start a session. Message
// carries the server's error description when it sent one.
type StartError struct {
	Code    int
	Message string
}

func (e *StartError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("start research: server returned %d", e.Code)
	}
	return fmt.Sprintf("start research: %s", e.Message)
}

// HTTPClient makes REST calls to the research server.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	// stream has no overall timeout; event streams are long-lived.
	stream *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:5000").
// A zero timeout selects the default of 10s.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// BaseURL returns the server base URL without a trailing slash.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// StartResearch sends POST /api/research and returns the new session id.
func (c *HTTPClient) StartResearch(ctx context.Context, topic string) (*StartResponse, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &StartError{Message: "topic is required"}
	}
	var out StartResponse
	err := c.post(ctx, "/api/research", StartRequest{Topic: topic}, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, &StartError{Code: se.Code, Message: serverMessage(se.Body)}
		}
		return nil, err
	}
	if out.SessionID == "" {
		return nil, &StartError{Code: http.StatusOK, Message: "response carried no session_id"}
	}
	return &out, nil
}

// GetResult fetches GET /api/research/{id}. Any non-200 answer is returned
// as a *StatusError; the server uses 404 while the session is still running.
func (c *HTTPClient) GetResult(ctx context.Context, sessionID string) (*SessionResult, error) {
	var out SessionResult
	if err := c.get(ctx, "/api/research/"+url.PathEscape(sessionID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamURL returns the server-sent events URL for a session.
func (c *HTTPClient) StreamURL(sessionID string) string {
	return c.baseURL + "/api/research/" + url.PathEscape(sessionID) + "/stream"
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode body: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("POST %s: decode body: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	c.setAuth(req)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// serverMessage extracts {"error": "..."} from a response body, falling
// back to the trimmed body text.
func serverMessage(body string) string {
	var er ErrorResponse
	if json.Unmarshal([]byte(body), &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(body)
}

// DeriveWSBase converts http://host:port/prefix → ws://host:port/prefix.
func DeriveWSBase(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil || u.Host == "" {
		return "ws://127.0.0.1:5000"
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, u.Host, strings.TrimRight(u.Path, "/"))
}
