// Package response renders the API envelope. Success bodies carry
// {"status":"success","data":...} with a results count on lists; failures
// carry {"status":"fail"|"error","message":...} where "fail" marks client
// errors and "error" everything else.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

type successBody struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data"`
}

type errorBody struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(successBody{Status: "success", Data: data}); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteList is WriteJSON plus the item count lists advertise.
func WriteList(w http.ResponseWriter, status int, count int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(successBody{Status: "success", Results: &count, Data: data}); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// Error maps any error onto the envelope. Operational errors surface
// their message; internal faults are logged and masked in production.
// devMode controls whether the underlying cause is echoed back.
func Error(w http.ResponseWriter, r *http.Request, err error, devMode bool) {
	appErr := apperr.From(err)
	status := appErr.HTTPStatus()

	body := errorBody{
		Status:  statusWord(status),
		Message: appErr.Message,
		Fields:  appErr.Fields,
	}
	if !appErr.Operational() {
		logger.ErrorContext(r.Context(), "Unhandled error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		if devMode && appErr.Err != nil {
			body.Error = appErr.Err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logger.Error("Failed to encode error response", "error", encErr)
	}
}

func statusWord(status int) string {
	if status >= 400 && status < 500 {
		return "fail"
	}
	return "error"
}
