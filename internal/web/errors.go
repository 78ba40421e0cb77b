package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as a JSON body carrying the user-facing message,
// suggested action and code from catalog.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// msgArchiveDisabled is returned by archive endpoints without a database.
var msgArchiveDisabled = catalog.UserMessage{
	Message: "Export archive is not configured",
	Action:  "Set DATABASE_URL to archive exports",
	Code:    "ARC001",
}

// statusFor picks the HTTP status for a catalog error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrMissingColumn):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err server-side and writes its user-facing form.
// A statusCode of 0 derives the status from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := catalog.MapError(err)

	// Mapped errors are expected outcomes; only ERR000 is logged as an error.
	level := slog.LevelError
	if catalog.IsUserFacing(err) {
		level = slog.LevelWarn
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg catalog.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
