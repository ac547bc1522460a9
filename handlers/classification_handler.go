package handlers

import (
	"net/http"

	"github.com/sei-platform/seibackend/classification"
)

type ClassificationHandler struct{}

// ListClassifications serves the statically defined SNI tiers.
func (h *ClassificationHandler) ListClassifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, classification.GetAllTiers())
}
