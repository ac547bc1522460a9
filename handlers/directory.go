package handlers

import (
	"net/http"
	"strings"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/search"
	"github.com/sei-platform/seibackend/textfields"
)

// DirectoryHandler serves the public researcher directory. Contact and identity
// fields (correo, CURP, RFC, teléfono) are never exposed here.
type DirectoryHandler struct {
	Store   *database.Store
	Metrics Observer
	Log     *logger.Logger
}

type directoryListing struct {
	Investigadores []search.ResearcherHit `json:"investigadores"`
	Total          int                    `json:"total"`
	Error          string                 `json:"error,omitempty"`
}

// ResearcherProfile is the public view of one researcher.
type ResearcherProfile struct {
	search.ResearcherHit
	Disciplina         *string              `json:"disciplina,omitempty"`
	Especialidad       *string              `json:"especialidad,omitempty"`
	LineaInvestigacion *string              `json:"linea_investigacion,omitempty"`
	FotografiaURL      *string              `json:"fotografia_url,omitempty"`
	CVURL              *string              `json:"cv_url,omitempty"`
	Proyectos          []search.Publication `json:"proyectos"`
	Publicaciones      []search.Publication `json:"publicaciones"`
}

func (h *DirectoryHandler) ListResearchers(w http.ResponseWriter, r *http.Request) {
	researchers, err := h.Store.ListActiveResearchers(r.Context())
	if err != nil {
		h.Log.Error("directory: failed to list researchers", "error", err)
		h.Metrics.ObserveDegraded("investigadores")
		writeJSON(w, http.StatusOK, directoryListing{
			Investigadores: []search.ResearcherHit{},
			Error:          "No se pudieron obtener los investigadores",
		})
		return
	}

	var hits []search.ResearcherHit
	if q := textfields.Fold(strings.TrimSpace(r.URL.Query().Get("search"))); q != "" {
		hits = search.Run(researchers, q, search.TypeResearchers, false).Investigadores
	} else {
		hits = make([]search.ResearcherHit, 0, len(researchers))
		for i := range researchers {
			hits = append(hits, search.HitFor(&researchers[i]))
		}
	}
	writeJSON(w, http.StatusOK, directoryListing{Investigadores: hits, Total: len(hits)})
}

func (h *DirectoryHandler) GetResearcher(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de investigador inválido", "")
		return
	}
	researcher, err := h.Store.GetResearcherByID(r.Context(), id)
	if err != nil || !researcher.Activo {
		if err != nil && !isNotFound(err) {
			writeStoreError(w, h.Log, err, "", "Error al obtener el investigador")
			return
		}
		WriteAPIError(w, http.StatusNotFound, "Investigador no encontrado", "")
		return
	}
	writeJSON(w, http.StatusOK, profileFor(&researcher))
}

func profileFor(r *models.Researcher) ResearcherProfile {
	p := ResearcherProfile{
		ResearcherHit:      search.HitFor(r),
		Disciplina:         r.Disciplina,
		Especialidad:       r.Especialidad,
		LineaInvestigacion: r.LineaInvestigacion,
		FotografiaURL:      r.FotografiaURL,
		CVURL:              r.CVURL,
		Proyectos:          search.Derive(r, models.FieldProyectos),
		Publicaciones:      []search.Publication{},
	}
	for _, kind := range models.PublicationKinds {
		p.Publicaciones = append(p.Publicaciones, search.Derive(r, kind)...)
	}
	return p
}
