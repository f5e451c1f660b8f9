package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cognita/internal/log"
)

func newTestMiddleware(buf *bytes.Buffer) *Middleware {
	cfg := log.DefaultConfig()
	cfg.Output = buf
	return NewMiddleware(log.New(cfg), func(*http.Request) string { return "203.0.113.7" })
}

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromRequest(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("expected generated id, got %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Errorf("response header = %q, want %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	for _, want := range []string{"HTTP request completed", "status_code=418", "client_ip=203.0.113.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
	if total, inFlight := m.Stats(); total != 1 || inFlight != 0 {
		t.Errorf("stats = %d, %d", total, inFlight)
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := newTestMiddleware(&buf)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"sane id", "abc-123_x.y", true},
		{"spaces", "abc 123", false},
		{"too long", strings.Repeat("a", 65), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = FromRequest(r) }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got := seen == tt.incoming; got != tt.keep {
				t.Errorf("kept = %v, want %v (id %q)", got, tt.keep, seen)
			}
		})
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b {
		t.Fatalf("ids should differ: %s", a)
	}
}
