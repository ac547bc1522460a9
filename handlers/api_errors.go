package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
)

// APIErrorResponse is the body of every error answer.
type APIErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteAPIError writes the error envelope with the given HTTP status.
func WriteAPIError(w http.ResponseWriter, httpStatus int, message string, details string) {
	writeJSON(w, httpStatus, APIErrorResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

// writeStoreError maps a store error to a response. Constraint violations carry their
// own status and Spanish message; missing rows become notFound; anything else is logged
// and answered with a generic 500.
func writeStoreError(w http.ResponseWriter, log *logger.Logger, err error, notFound, failure string) {
	var cerr *database.ConstraintError
	switch {
	case errors.As(database.TranslateError(err), &cerr):
		WriteAPIError(w, cerr.Status, cerr.Message, "")
	case isNotFound(err):
		WriteAPIError(w, http.StatusNotFound, notFound, "")
	default:
		log.Error(failure, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, failure, "Error interno del servidor")
	}
}
