package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

func TestRequestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("debug", &buf)

	handler := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"slot taken"}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	req.Header.Set("X-Request-Id", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level for 409, got %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusConflict) {
		t.Errorf("expected status 409, got %v", entry["status"])
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("expected request id req-42, got %v", entry["request_id"])
	}
	if entry["path"] != "/v1/appointments" {
		t.Errorf("unexpected path %v", entry["path"])
	}
}

func TestRequestLoggerDefaultsToOK(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if entry["status"] != float64(http.StatusOK) || entry["level"] != "INFO" {
		t.Fatalf("expected INFO with status 200, got %v", entry)
	}
}
