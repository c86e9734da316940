package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptdeck/prism/internal/fault"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAuthError(rec, "req-123", "API key rejected by provider")

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var body APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Type != "authentication_error" {
		t.Errorf("type = %q", body.Error.Type)
	}
	if body.Error.PrismReqID != "req-123" {
		t.Errorf("request id = %q", body.Error.PrismReqID)
	}
}

func TestWriteFaultStatusMapping(t *testing.T) {
	tests := []struct {
		kind fault.Kind
		want int
	}{
		{fault.Unauthenticated, http.StatusUnauthorized},
		{fault.RateLimited, http.StatusTooManyRequests},
		{fault.InvalidRequest, http.StatusBadRequest},
		{fault.ProviderError, http.StatusBadGateway},
		{fault.ConnectionFailed, http.StatusGatewayTimeout},
		{fault.Unknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteFault(rec, "req-1", tt.kind, "boom")
		if rec.Code != tt.want {
			t.Errorf("kind %s: status = %d, want %d", tt.kind, rec.Code, tt.want)
		}
	}
}
