package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/logging"
	"github.com/ekaya-inc/scorecard/pkg/scoring"
)

// maxBodyBytes bounds request bodies read by the handlers.
const maxBodyBytes = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response, logging when the response itself
// cannot be written.
func writeError(w http.ResponseWriter, logger *zap.Logger, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeResponse writes data as JSON, logging encoding failures.
func writeResponse(w http.ResponseWriter, logger *zap.Logger, statusCode int, data any) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto an HTTP error response.
// action names the failed operation in logs.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var coerceErr *scoring.CoercionError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		writeError(w, logger, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, logger, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &coerceErr):
		logger.Error("Stored fact value does not match its data type",
			zap.String("action", action),
			zap.Int64("fact_type_id", coerceErr.FactTypeID),
			zap.String("fact", coerceErr.Name),
			zap.String("value", logging.TruncateValue(coerceErr.Value)),
			zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, "data_integrity_error", err.Error())
	case errors.Is(err, scoring.ErrOverlappingRanges),
		errors.Is(err, scoring.ErrEmptyRange),
		errors.Is(err, scoring.ErrOptionsNotLoaded):
		logger.Error("Invalid scoring configuration", zap.String("action", action), zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, "invalid_configuration", err.Error())
	default:
		logger.Error("Failed to "+action, zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// decodeBody decodes the JSON request body into v. It writes a 400 response
// and returns false when the body is not valid JSON.
// decodePatch reads an RFC 6902 JSON Patch document from the request body.
func decodePatch(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (jsonpatch.Patch, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return nil, false
	}
	patch, err := jsonpatch.DecodePatch(body)
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid JSON Patch: "+err.Error())
		return nil, false
	}
	return patch, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return false
	}
	return true
}
