package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ParseProjectID extracts the project id from the path parameter "id".
// It writes a 400 response and returns false when the id is not a positive
// integer.
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "invalid_project_id", "Invalid project ID", logger)
}

// ParseFactTypeID extracts the fact type id from the path parameter "id".
func ParseFactTypeID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "invalid_fact_type_id", "Invalid fact type ID", logger)
}

func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, logger, http.StatusBadRequest, errorCode, errorMessage)
		return 0, false
	}
	return id, true
}

// queryBool reads a boolean query parameter. Absent or unparsable values
// read as false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
