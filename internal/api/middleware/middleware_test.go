package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Query strings on the notes routes can carry raw PHI; the request log must
// record the path only.
func TestLoggerOmitsQueryString(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logger(zap.New(core))(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/notes?conversation=John+Smith+has+a+headache", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	for _, field := range entries[0].Context {
		if strings.Contains(field.String, "John") || strings.Contains(field.String, "conversation=") {
			t.Errorf("log field %s leaked the query string: %s", field.Key, field.String)
		}
	}
	if path := entries[0].ContextMap()["path"]; path != "/api/v1/notes" {
		t.Errorf("expected bare path, got %v", path)
	}
}

// Span attributes follow the same rule as the request log: path, no query.
func TestTracingOmitsQueryString(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	handler := Tracing("scribe-api-test")(okHandler())
	req := httptest.NewRequest("GET", "/api/v1/notes?patient=Jane+Doe", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	for _, attr := range spans[0].Attributes() {
		v := attr.Value.Emit()
		if strings.Contains(v, "Jane") || strings.Contains(v, "patient=") {
			t.Errorf("span attribute %s leaked the query string: %s", attr.Key, v)
		}
	}
	if spans[0].Name() != "GET /api/v1/notes" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	var clientID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = GetClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := APIKeyAuth(map[string]string{"valid-key": "clinic-a"})(inner)

	cases := []struct {
		name   string
		key    string
		status int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"invalid key", "wrong", http.StatusUnauthorized},
		{"valid key", "valid-key", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/api/v1/reviews/pending", nil)
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("%s: status %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
	if clientID != "clinic-a" {
		t.Errorf("expected client id clinic-a in context, got %q", clientID)
	}
}

func TestAPIKeyAuthAcceptsBearerToken(t *testing.T) {
	handler := APIKeyAuth(map[string]string{"valid-key": "clinic-a"})(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/reviews/pending", nil)
	req.Header.Set("Authorization", "Bearer valid-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status %d, want 200", rec.Code)
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})
	handler := RequestID(inner)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("echoed id %q does not match context id %q", got, seen)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "supplied-id")
	handler.ServeHTTP(rec, req)
	if seen != "supplied-id" {
		t.Errorf("expected supplied id honored, got %q", seen)
	}
}
