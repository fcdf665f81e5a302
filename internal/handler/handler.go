package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/model"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[string]int{
	model.ErrCodeInvalidJSON:       http.StatusBadRequest,
	model.ErrCodeValidation:        http.StatusBadRequest,
	model.ErrCodeMissingSession:    http.StatusBadRequest,
	model.ErrCodeUnauthenticated:   http.StatusUnauthorized,
	model.ErrCodeUnauthorised:      http.StatusUnauthorized,
	model.ErrCodeNotPurchased:      http.StatusForbidden,
	model.ErrCodeProductNotFound:   http.StatusNotFound,
	model.ErrCodeOrderNotFound:     http.StatusNotFound,
	model.ErrCodeReviewNotFound:    http.StatusNotFound,
	model.ErrCodeAlreadyReviewed:   http.StatusConflict,
	model.ErrCodeInvalidTransition: http.StatusConflict,
	model.ErrCodeReconciliation:    http.StatusConflict,
	model.ErrCodeEmptyCart:         http.StatusUnprocessableEntity,
	model.ErrCodeNoValidItems:      http.StatusUnprocessableEntity,
	model.ErrCodeLedgerIntegrity:   http.StatusUnprocessableEntity,
	model.ErrCodePaymentIncomplete: http.StatusPaymentRequired,
	model.ErrCodeGateway:           http.StatusBadGateway,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, logger zerolog.Logger) {
	reqID := chimw.GetReqID(r.Context())

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("request_id", reqID).Str("code", code).Str("error", message).Int("status", status).Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         code,
		Message:       message,
		CorrelationID: reqID,
	})
}

// respondError translates a service error into an API error response.
// Errors that are not domain errors are logged and hidden behind a 500.
func respondError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeError(w, r, status, domainErr.Code, domainErr.Message, logger)
		return
	}

	logger.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("unexpected service error")
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

// decodeJSON decodes the request body into v. A body that is not valid JSON
// yields an INVALID_JSON domain error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "invalid request body")
	}
	return nil
}

// queryInt reads a non-negative integer query parameter, returning def when
// it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, model.NewValidationError("invalid %s parameter", name)
	}
	return value, nil
}
