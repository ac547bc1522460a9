package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sei-platform/seibackend/aggregate"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
)

// ResearcherSource lists the active researchers every derived view is computed from.
type ResearcherSource interface {
	ListActiveResearchers(ctx context.Context) ([]models.Researcher, error)
}

// Observer records domain counters.
type Observer interface {
	ObserveSearch(typ string)
	ObserveDegraded(endpoint string)
}

type CamposHandler struct {
	Source     ResearcherSource
	Aggregator *aggregate.Aggregator
	Metrics    Observer
	Log        *logger.Logger
}

type campoDetailResponse struct {
	aggregate.Detail
	Error string `json:"error,omitempty"`
}

type institutionStatsResponse struct {
	Instituciones []aggregate.Record `json:"instituciones"`
	Total         int                `json:"total"`
	Error         string             `json:"error,omitempty"`
}

// ListCampos serves the research-area listing. A failed read degrades to an empty
// listing with an error marker.
func (h *CamposHandler) ListCampos(w http.ResponseWriter, r *http.Request) {
	q := aggregate.ParseQuery(r.URL.Query())
	researchers, err := h.Source.ListActiveResearchers(r.Context())
	if err != nil {
		h.Log.Error("campos: failed to list researchers", "error", err)
		h.Metrics.ObserveDegraded("campos")
		listing := aggregate.EmptyListing(q)
		listing.Error = "No se pudieron obtener los campos de investigación"
		writeJSON(w, http.StatusOK, listing)
		return
	}
	writeJSON(w, http.StatusOK, h.Aggregator.Campos(researchers, q))
}

func (h *CamposHandler) GetCampo(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	researchers, err := h.Source.ListActiveResearchers(r.Context())
	if err != nil {
		h.Log.Error("campo detail: failed to list researchers", "slug", slug, "error", err)
		h.Metrics.ObserveDegraded("campo_detalle")
		writeJSON(w, http.StatusOK, campoDetailResponse{
			Detail: aggregate.EmptyDetail(slug),
			Error:  "No se pudo obtener el campo de investigación",
		})
		return
	}
	detail, ok := h.Aggregator.AreaDetail(researchers, slug)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "Campo de investigación no encontrado", slug)
		return
	}
	writeJSON(w, http.StatusOK, campoDetailResponse{Detail: detail})
}

// InstitutionStats groups researchers by institution.
func (h *CamposHandler) InstitutionStats(w http.ResponseWriter, r *http.Request) {
	researchers, err := h.Source.ListActiveResearchers(r.Context())
	if err != nil {
		h.Log.Error("institution stats: failed to list researchers", "error", err)
		h.Metrics.ObserveDegraded("estadisticas_instituciones")
		writeJSON(w, http.StatusOK, institutionStatsResponse{
			Instituciones: []aggregate.Record{},
			Error:         "No se pudieron obtener las estadísticas",
		})
		return
	}
	records := h.Aggregator.ByInstitution(researchers)
	writeJSON(w, http.StatusOK, institutionStatsResponse{Instituciones: records, Total: len(records)})
}
