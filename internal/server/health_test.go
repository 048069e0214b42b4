package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newTestServer builds a Server on an isolated registry with a silent logger.
func newTestServer(t *testing.T, pingers ...Pinger) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := New(&Config{
		Addr:            "127.0.0.1:0",
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Pingers:         pingers,
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, reg
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantFailed map[string]bool
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name:       "all healthy",
			pingers:    []Pinger{&fakePinger{name: "index"}, &fakePinger{name: "qdrant"}},
			wantStatus: http.StatusOK,
			wantReady:  true,
			wantFailed: map[string]bool{"index": false, "qdrant": false},
		},
		{
			name: "one failing",
			pingers: []Pinger{
				&fakePinger{name: "index"},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: map[string]bool{"index": false, "qdrant": true},
		},
		{
			name: "all failing",
			pingers: []Pinger{
				&fakePinger{name: "index", err: errEmptyIndex},
				&fakePinger{name: "qdrant", err: errors.New("timeout")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: map[string]bool{"index": true, "qdrant": true},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, tc.pingers...)

			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status: got %d, want %d: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: %q", ct)
			}
			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready: got %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantFailed) {
				t.Fatalf("checks: got %d, want %d", len(resp.Checks), len(tc.wantFailed))
			}
			for _, c := range resp.Checks {
				failed := tc.wantFailed[c.Name]
				if c.OK == failed {
					t.Errorf("check %q: ok=%v", c.Name, c.OK)
				}
				if failed && c.Error == "" {
					t.Errorf("check %q: expected an error message", c.Name)
				}
			}
		})
	}
}
