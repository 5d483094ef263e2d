// Package session holds the mutable HTTP state shared by the checks of one run:
// the backend base URL, default headers and the bearer token.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// Header names used by the session.
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	contentTypeJSON = "application/json"
)

// Doer executes a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session is owned by one run and is not safe for concurrent use.
type Session struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
	token   string
	headers map[string]string
}

// New creates a session against baseURL. A nil logger uses slog.Default.
func New(baseURL string, client Doer, logger *slog.Logger) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger,
		headers: make(map[string]string),
	}, nil
}

// BaseURL returns the base URL without a trailing slash.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// SetBearer stores the token and sends it as a bearer Authorization header on
// every later request.
func (s *Session) SetBearer(token string) {
	s.token = token
	s.headers[HeaderAuthorization] = "Bearer " + token
	s.logger.Debug("session authenticated")
}

// Token returns the stored bearer token, or "" before login.
func (s *Session) Token() string {
	return s.token
}

// SetHeader sets a default header sent with every request.
func (s *Session) SetHeader(key, value string) {
	s.headers[key] = value
}

// Headers returns a copy of the default headers.
func (s *Session) Headers() map[string]string {
	return maps.Clone(s.headers)
}

// URL joins path onto the base URL.
func (s *Session) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL + path
}

// Do issues one request. A non-nil body is JSON encoded. Default headers are
// applied first so per-request headers win. The whole response body is read
// before returning; a non-2xx status is not an error.
func (s *Session) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set(HeaderContentType, contentTypeJSON)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	s.logger.Debug("response received",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON parses the body for path queries. An invalid body yields a result whose Exists is false.
func (r *Response) JSON() gjson.Result {
	if !gjson.ValidBytes(r.Body) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

// Object decodes the body as a JSON object. A non-object body yields an empty map.
func (r *Response) Object() map[string]any {
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// Snippet returns at most the first n characters of the body.
func (r *Response) Snippet(n int) string {
	text := string(r.Body)
	if n < 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
