package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/promptdeck/prism/internal/fault"
)

// APIError matches the OpenAI error response format so existing client
// SDKs can parse gateway failures.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	PrismReqID string `json:"prism_request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Message:    message,
			Type:       errType,
			Code:       code,
			PrismReqID: requestID,
		},
	})
}

func WriteAuthError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusUnauthorized, "authentication_error", "invalid_api_key", message)
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded", message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusServiceUnavailable, "server_error", "service_unavailable", message)
}

func WriteBudgetExceededError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusPaymentRequired, "budget_error", "budget_exceeded", message)
}

// WriteFault maps a classified provider failure onto the error envelope.
// Messages here are the gateway's own wording; raw provider errors go to
// the log, not the client.
func WriteFault(w http.ResponseWriter, requestID string, kind fault.Kind, message string) {
	switch kind {
	case fault.Unauthenticated:
		WriteError(w, requestID, http.StatusUnauthorized, "authentication_error", "provider_auth_failed", message)
	case fault.RateLimited:
		WriteRateLimitError(w, requestID, message)
	case fault.InvalidRequest:
		WriteBadRequestError(w, requestID, message)
	case fault.ProviderError:
		WriteError(w, requestID, http.StatusBadGateway, "server_error", "provider_error", message)
	case fault.ConnectionFailed:
		WriteError(w, requestID, http.StatusGatewayTimeout, "server_error", "provider_unreachable", message)
	default:
		WriteInternalError(w, requestID, message)
	}
}
