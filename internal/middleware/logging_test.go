package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	var seenRequestID string
	handler := RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := RequestIDFromContext(r.Context())
		if !ok {
			t.Error("request ID missing from context")
		}
		seenRequestID = id
		LoggerFromContext(r.Context()).Info("handler ran")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/features", nil))

	if seenRequestID == "" || seenRequestID == "unknown" {
		t.Fatalf("request ID = %q, want generated hex", seenRequestID)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2 (handler + completion)", len(lines))
	}

	var completion map[string]any
	if err := json.Unmarshal(lines[1], &completion); err != nil {
		t.Fatalf("completion line is not JSON: %v", err)
	}
	if completion["request_id"] != seenRequestID {
		t.Errorf("completion request_id = %v, want %q", completion["request_id"], seenRequestID)
	}
	if completion["status"] != float64(http.StatusTeapot) {
		t.Errorf("completion status = %v, want %d", completion["status"], http.StatusTeapot)
	}
	if completion["path"] != "/v1/features" {
		t.Errorf("completion path = %v, want /v1/features", completion["path"])
	}
}

func TestLoggerFromContext_FallsBackToDefault(t *testing.T) {
	if LoggerFromContext(t.Context()) == nil {
		t.Fatal("LoggerFromContext returned nil")
	}
}
