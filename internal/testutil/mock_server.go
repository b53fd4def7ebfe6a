// Package testutil provides an httptest server that speaks the response
// envelope, for transport and end-to-end tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the server saw for one request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// MockServer is a configurable envelope server.
type MockServer struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockServer starts a mock server. Unknown paths answer 404.
func NewMockServer() *MockServer {
	m := &MockServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		handler, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return m
}

// URL returns the server base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetHandler installs a custom handler for path.
func (m *MockServer) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse answers path with a fixed response.
func (m *MockServer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetEnvelope answers path with a 200 carrying {code, data, errMsg}.
func (m *MockServer) SetEnvelope(path string, code int, data any, errMsg string) {
	m.SetResponse(path, NewEnvelopeResponse(code, data, errMsg))
}

// SetPagedList serves a list of total items, pageSize at a time, selecting
// the page from the zero-based "page" query parameter.
func (m *MockServer) SetPagedList(path string, total, pageSize int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		items := []int{}
		for i := page * pageSize; i < (page+1)*pageSize && i < total; i++ {
			items = append(items, i)
		}

		WriteEnvelope(w, 200, map[string]any{"total": total, "list": items}, "")
	})
}

// Requests returns a copy of everything received so far.
func (m *MockServer) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests received.
func (m *MockServer) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset forgets recorded requests.
func (m *MockServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// NewEnvelopeResponse builds a 200 response whose body is an envelope.
func NewEnvelopeResponse(code int, data any, errMsg string) MockResponse {
	body, _ := json.Marshal(map[string]any{"code": code, "data": data, "errMsg": errMsg})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>oops</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// WriteEnvelope answers with HTTP 200 and the envelope {code, data, errMsg}.
func WriteEnvelope(w http.ResponseWriter, code int, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"code": code, "data": data, "errMsg": errMsg})
}
