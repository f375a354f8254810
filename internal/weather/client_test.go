package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// mockRoundTripper is a custom RoundTripper for testing
type mockRoundTripper struct {
	handler http.Handler
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	m.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	return resp, nil
}

const popayanResponse = `{
	"latitude": 2.44,
	"longitude": -76.62,
	"current": {
		"time": "2025-03-01T14:00",
		"temperature_2m": 22.4,
		"surface_pressure": 821.3,
		"relative_humidity_2m": 71
	}
}`

func newTestClient(handler http.Handler) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		UserAgent: "test-agent",
		HTTPClient: &http.Client{
			Transport: &mockRoundTripper{handler: handler},
		},
	}
}

func TestGetCurrent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request parameters
		q := r.URL.Query()
		if q.Get("latitude") != "2.4448" {
			t.Errorf("expected latitude=2.4448, got %s", q.Get("latitude"))
		}
		if q.Get("longitude") != "-76.6147" {
			t.Errorf("expected longitude=-76.6147, got %s", q.Get("longitude"))
		}
		if q.Get("current") != "temperature_2m,surface_pressure,relative_humidity_2m" {
			t.Errorf("unexpected current=%s", q.Get("current"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected User-Agent test-agent, got %s", r.Header.Get("User-Agent"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(popayanResponse))
	})

	fc, err := newTestClient(handler).GetCurrent(context.Background(), 2.4448, -76.6147)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.Current.Temperature2m != 22.4 {
		t.Errorf("expected temperature 22.4, got %v", fc.Current.Temperature2m)
	}
	if fc.Current.SurfacePressure != 821.3 {
		t.Errorf("expected pressure 821.3, got %v", fc.Current.SurfacePressure)
	}
}

func TestGetCurrentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"invalid json", http.StatusOK, "{not json"},
		{"missing current block", http.StatusOK, `{"latitude": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			if _, err := newTestClient(handler).GetCurrent(context.Background(), 0, 0); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "")
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %s", c.BaseURL)
	}
	if c.UserAgent == "" {
		t.Error("expected a default User-Agent")
	}
	if c.HTTPClient.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", c.HTTPClient.Timeout)
	}
}

func TestServiceMemoises(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(popayanResponse))
	})

	svc := NewService(newTestClient(handler), nil)
	now := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	c, err := svc.Current(context.Background(), 2.4448, -76.6147)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PressurePa() != 82130 {
		t.Errorf("expected 82130 Pa, got %v", c.PressurePa())
	}

	// nearby coordinates share the rounded cache key
	if _, err := svc.Current(context.Background(), 2.4449, -76.6148); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}

	now = now.Add(DefaultTTL + time.Second)
	if _, err := svc.Current(context.Background(), 2.4448, -76.6147); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected refetch after expiry, got %d calls", calls.Load())
	}
}

func TestServiceError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	svc := NewService(newTestClient(handler), nil)
	if _, err := svc.Current(context.Background(), 1, 1); err == nil {
		t.Error("expected error, got nil")
	}
}
