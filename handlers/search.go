package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/search"
)

type SearchHandler struct {
	Searcher *search.Searcher
	Store    *database.Store
	Demo     bool
	Metrics  Observer
	Log      *logger.Logger
}

type publicationList struct {
	Publicaciones []search.Publication `json:"publicaciones"`
	Total         int                  `json:"total"`
	Error         string               `json:"error,omitempty"`
}

type authorsResponse struct {
	search.AuthorResolution
	Error string `json:"error,omitempty"`
}

// Search serves GET /search?q=&type=. It always answers 200.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	typ := search.ParseType(r.URL.Query().Get("type"))
	res, err := h.Searcher.Search(r.Context(), r.URL.Query().Get("q"), typ)
	if err != nil {
		h.Log.Error("search failed", "type", typ, "error", err)
		h.Metrics.ObserveDegraded("search")
	}
	h.Metrics.ObserveSearch(string(typ))
	writeJSON(w, http.StatusOK, res)
}

// ListPublications serves the derived publication catalogue, filtered by ?tipo= and
// ?search=.
func (h *SearchHandler) ListPublications(w http.ResponseWriter, r *http.Request) {
	filter := search.PublicationFilter{
		Tipo:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("tipo"))),
		Search: r.URL.Query().Get("search"),
	}
	if filter.Tipo != "" && !models.IsValidFieldKind(filter.Tipo) {
		WriteAPIError(w, http.StatusBadRequest, "Tipo de publicación inválido", filter.Tipo)
		return
	}

	researchers, err := h.Store.ListActiveResearchers(r.Context())
	if err != nil {
		h.Log.Error("publications: failed to list researchers", "error", err)
		h.Metrics.ObserveDegraded("publicaciones")
		writeJSON(w, http.StatusOK, publicationList{
			Publicaciones: []search.Publication{},
			Error:         "No se pudieron obtener las publicaciones",
		})
		return
	}
	pubs := search.ListPublications(researchers, filter, h.Demo)
	writeJSON(w, http.StatusOK, publicationList{Publicaciones: pubs, Total: len(pubs)})
}

// PublicationAuthors resolves the authors named in one derived publication.
func (h *SearchHandler) PublicationAuthors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	researcherID, kind, index, err := search.ParsePublicationID(id)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Identificador de publicación inválido", id)
		return
	}

	owner, err := h.Store.GetResearcherByID(r.Context(), researcherID)
	if err != nil || !owner.Activo {
		if err != nil && !isNotFound(err) {
			writeStoreError(w, h.Log, err, "", "Error al obtener la publicación")
			return
		}
		WriteAPIError(w, http.StatusNotFound, "Publicación no encontrada", id)
		return
	}
	pub, ok := search.FindPublication(&owner, kind, index)
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "Publicación no encontrada", id)
		return
	}

	resolution, err := search.ResolveAuthors(r.Context(), h.Store, &owner, pub)
	if err != nil {
		h.Log.Error("author resolution failed", "publication_id", id, "error", err)
		h.Metrics.ObserveDegraded("autores")
		writeJSON(w, http.StatusOK, authorsResponse{
			AuthorResolution: search.AuthorResolution{
				Publicacion: pub,
				Principal:   search.AuthorMatch{ID: owner.ID, Nombre: owner.NombreCompleto},
				Candidatos:  []search.AuthorCandidate{},
			},
			Error: "No se pudieron resolver los autores",
		})
		return
	}
	writeJSON(w, http.StatusOK, authorsResponse{AuthorResolution: resolution})
}
