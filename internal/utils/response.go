package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"

	"github.com/go-chi/chi/v5/middleware"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess wraps data in a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// StatusOf maps a ledger error to its HTTP status. Signature failures share
// 403 with the authorization errors.
func StatusOf(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation, models.KindBadRequest:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusForbidden
	case models.KindCapacity, models.KindConflict:
		return http.StatusConflict
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf is the response code for err. Every authorization and signature
// failure reports "forbidden".
func CodeOf(err error) string {
	if models.KindOf(err) == models.KindUnauthorized {
		return "forbidden"
	}
	return models.CodeOf(err)
}

// WriteError writes err in an error envelope. Internal errors are not echoed
// to the client.
func WriteError(w http.ResponseWriter, message string, err error) {
	status, resp := ErrorFor(message, err)
	WriteJSON(w, status, resp)
}

// ErrorFor builds the status and envelope for err. Internal failures are
// reported without their detail.
func ErrorFor(message string, err error) (int, APIResponse) {
	status := StatusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	resp := ErrorResponse(message, detail)
	resp.Code = CodeOf(err)
	return status, resp
}

// WriteBadRequest reports a malformed request body or parameter.
func WriteBadRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse(message, err.Error())
	resp.Code = "bad_request"
	WriteJSON(w, http.StatusBadRequest, resp)
}

// RequestLogger logs one API line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start).String())
		})
	}
}
