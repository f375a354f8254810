package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/swelljoe/rocketdash/internal/handlers"
)

// TestStaticAssetsServed verifies that the static file server serves the
// stylesheet and the simulator script next to the dashboard routes.
func TestStaticAssetsServed(t *testing.T) {
	// Serve files from the repo's static directory (relative to cmd/rocketdash)
	staticDir := filepath.Join("..", "..", "static")
	handler, err := newServer(handlers.Deps{Logger: zap.NewNop()}, staticDir)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/static/style.css", "text/css", "body"},
		{"/static/simulador.js", "javascript", "JSON.stringify"},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected status 200 OK, got %d", tt.path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
			t.Errorf("%s: unexpected Content-Type: %s", tt.path, ct)
		}
		if !strings.Contains(string(body), tt.contains) {
			t.Errorf("%s: expected body to contain %q", tt.path, tt.contains)
		}
	}
}

func TestHealthThroughServer(t *testing.T) {
	handler, err := newServer(handlers.Deps{Logger: zap.NewNop()}, t.TempDir())
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status OK, got %v", w.Code)
	}
	if got := w.Body.String(); got != `{"status":"no_database"}` {
		t.Errorf("unexpected body %s", got)
	}
}
