package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/fetchkit/internal/testutil"
	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/history"
	"github.com/Sternrassler/fetchkit/pkg/request"
)

// setup points the CLI at a fresh mock server with logging off.
func setup(t *testing.T) *testutil.MockServer {
	t.Helper()

	mock := testutil.NewMockServer()
	t.Cleanup(mock.Close)

	t.Setenv("FETCHKIT_BASE_URL", mock.URL())
	t.Setenv("FETCHKIT_LOG_LEVEL", "off")
	t.Setenv("FETCHKIT_REDIS_ADDR", "")
	t.Setenv("FETCHKIT_DEBOUNCE_DELAY", "20ms")
	return mock
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return runApp(t, &app{}, strings.NewReader(stdin), args...)
}

func runApp(t *testing.T, a *app, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(stdin)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// awaitRequests polls until the mock has seen n requests or two seconds
// have passed.
func awaitRequests(mock *testutil.MockServer, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for mock.RequestCount() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGet_PrintsData(t *testing.T) {
	mock := setup(t)
	mock.SetEnvelope("/user", 200, map[string]any{"name": "ann"}, "")

	out, err := run(t, "", "get", "/user", "-p", "id=7")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["name"] != "ann" {
		t.Errorf("name = %v, want ann", got["name"])
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Method != "GET" || reqs[0].Query.Get("id") != "7" {
		t.Errorf("unexpected request %s %v", reqs[0].Method, reqs[0].Query)
	}
}

func TestGet_MethodTokenSendsBody(t *testing.T) {
	mock := setup(t)
	mock.SetEnvelope("/user", 200, nil, "")

	if _, err := run(t, "", "get", "/user:post", "-p", "name=bob"); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	req := mock.Requests()[0]
	if req.Method != "POST" {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if len(req.Query) != 0 {
		t.Errorf("query = %v, want none", req.Query)
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["name"] != "bob" {
		t.Errorf("body = %v", body)
	}
}

func TestGet_Failures(t *testing.T) {
	mock := setup(t)
	mock.SetEnvelope("/denied", 403, nil, "not allowed")

	_, err := run(t, "", "get", "/denied")
	var appErr *client.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want ApplicationError", err)
	}
	if appErr.Code != 403 || appErr.Message != "not allowed" {
		t.Errorf("unexpected application error %+v", appErr)
	}

	if _, err := run(t, "", "get", "/missing"); err == nil {
		t.Error("expected an error for a 404 transport failure")
	}
}

func TestGet_Manual(t *testing.T) {
	mock := setup(t)
	mock.SetEnvelope("/ping", 200, "pong", "")

	out, err := run(t, "", "get", "--manual", "/ping")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if strings.TrimSpace(out) != `"pong"` {
		t.Errorf("output = %q", out)
	}
	if n := mock.RequestCount(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestScroll(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		items    int
		requests int
	}{
		{"all pages", nil, 25, 3},
		{"page limit", []string{"--pages", "2"}, 20, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := setup(t)
			mock.SetPagedList("/items", 25, 10)

			out, err := run(t, "", append([]string{"scroll", "/items"}, tt.args...)...)
			if err != nil {
				t.Fatalf("scroll failed: %v", err)
			}

			lines := strings.Fields(out)
			if len(lines) != tt.items {
				t.Fatalf("items = %d, want %d", len(lines), tt.items)
			}
			if lines[0] != "0" || lines[len(lines)-1] != strconv.Itoa(tt.items-1) {
				t.Errorf("unexpected items %v", lines)
			}
			if n := mock.RequestCount(); n != tt.requests {
				t.Errorf("requests = %d, want %d", n, tt.requests)
			}
			for i, req := range mock.Requests() {
				if got := req.Query.Get("page"); got != strconv.Itoa(i) {
					t.Errorf("request %d page = %s", i, got)
				}
			}
		})
	}
}

func TestScroll_StopsOnBadPage(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		data    any
		wantErr string
	}{
		{"rejected page", 500, nil, "boom"},
		{"empty page", 200, map[string]any{"total": 25, "list": []int{}}, "no items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := setup(t)
			mock.SetHandler("/items", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("page") == "0" {
					testutil.WriteEnvelope(w, 200, map[string]any{"total": 25, "list": []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}, "")
					return
				}
				testutil.WriteEnvelope(w, tt.code, tt.data, "boom")
			})

			done := make(chan struct{})
			var out string
			var err error
			go func() {
				defer close(done)
				out, err = run(t, "", "scroll", "/items")
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("scroll did not stop, requests = %d", mock.RequestCount())
			}

			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
			if n := len(strings.Fields(out)); n != 10 {
				t.Errorf("items printed = %d, want the 10 of the first page", n)
			}
			if n := mock.RequestCount(); n != 2 {
				t.Errorf("requests = %d, want 2", n)
			}
		})
	}
}

func TestSearch_DebouncesInput(t *testing.T) {
	mock := setup(t)
	mock.SetEnvelope("/search", 200, []string{"red shoes"}, "")

	out, err := run(t, "s\nsh\nshoes\n", "search", "/search")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if q := reqs[0].Query.Get("q"); q != "shoes" {
		t.Errorf("q = %s, want shoes", q)
	}
	if !strings.HasPrefix(out, "shoes\t") {
		t.Errorf("output = %q", out)
	}
}

func TestSearch_RejectedQueryNotRecorded(t *testing.T) {
	mock := setup(t)
	mock.SetHandler("/search", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q == "good" {
			testutil.WriteEnvelope(w, 200, []string{"result-for-good"}, "")
			return
		}
		testutil.WriteEnvelope(w, 500, nil, "no results")
	})

	// Each query must fire on its own, so "bad" is written only after
	// "good" has reached the server.
	stdin, input := io.Pipe()
	go func() {
		io.WriteString(input, "good\n")
		awaitRequests(mock, 1)
		io.WriteString(input, "bad\n")
		input.Close()
	}()

	store := history.NewMemoryStore()
	out, err := runApp(t, &app{store: store}, stdin, "search", "/search")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if n := mock.RequestCount(); n != 2 {
		t.Fatalf("requests = %d, want 2", n)
	}
	if want := "good\t[\"result-for-good\"]\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	recent := history.New(context.Background(), store).GetAll()
	if !reflect.DeepEqual(recent, []string{"good"}) {
		t.Errorf("recent queries = %v, want [good]", recent)
	}
}

func TestHistory(t *testing.T) {
	setup(t)

	out, err := run(t, "", "history", "add", "shoes")
	if err != nil {
		t.Fatalf("history add failed: %v", err)
	}
	if strings.TrimSpace(out) != "shoes" {
		t.Errorf("add output = %q", out)
	}

	out, err = run(t, "", "history", "clear")
	if err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	if out != "" {
		t.Errorf("clear output = %q", out)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    request.Params
		wantErr bool
	}{
		{"empty", nil, request.Params{}, false},
		{"single", []string{"a=1"}, request.Params{"a": "1"}, false},
		{"value with equals", []string{"f=x=y"}, request.Params{"f": "x=y"}, false},
		{"repeated", []string{"t=a", "t=b", "t=c"}, request.Params{"t": []string{"a", "b", "c"}}, false},
		{"missing equals", []string{"oops"}, nil, true},
		{"empty key", []string{"=v"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoot_FlagOverridesInvalidEnvironment(t *testing.T) {
	mock := setup(t)
	t.Setenv("FETCHKIT_BASE_URL", "not a url")
	mock.SetEnvelope("/ping", 200, "pong", "")

	out, err := run(t, "", "--base-url", mock.URL(), "get", "/ping")
	if err != nil {
		t.Fatalf("get with --base-url failed: %v", err)
	}
	if strings.TrimSpace(out) != `"pong"` {
		t.Errorf("output = %q", out)
	}
}

func TestRoot_InvalidConfig(t *testing.T) {
	setup(t)
	t.Setenv("FETCHKIT_BASE_URL", "not a url")

	if _, err := run(t, "", "history", "list"); err == nil {
		t.Error("expected configuration error")
	}
}
