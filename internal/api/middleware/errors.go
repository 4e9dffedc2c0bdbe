package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
	"github.com/olegiv/bugfixer-ai-go/internal/logging"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteError writes err as {"detail": ...} with the status derived from its kind.
// Classified errors report their message; the upstream body is passed through
// for upstream failures.
func WriteError(w http.ResponseWriter, r *http.Request, err error, log *logging.SecureLogger) {
	status := internalerrors.HTTPStatus(err)
	detail := err.Error()

	var classified *internalerrors.Error
	if errors.As(err, &classified) && classified.Message != "" {
		detail = classified.Message
	}
	redacted := internalerrors.ContainsCredentials(detail)

	if log != nil {
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Int("status", status).
			Str("kind", internalerrors.KindOf(err).String()).
			Bool("detail_redacted", redacted).
			Err(err).
			Msg("request error")
	}

	WriteJSON(w, status, ErrorResponse{Detail: internalerrors.SanitizeString(detail)})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
