package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/realtime"
)

// ImageQueue schedules background work on stored institution images.
type ImageQueue interface {
	QueueThumbnail(institutionID uint, imagePath string) bool
	QueueDelete(paths ...string)
}

// Broadcaster pushes an event to every connected client.
type Broadcaster interface {
	Broadcast(event realtime.Event)
}

type InstitutionHandler struct {
	Store          *database.Store
	Processor      *media.Processor
	Images         ImageQueue
	Events         Broadcaster
	MaxUploadBytes int64
	Log            *logger.Logger
}

const institutionImageField = "imagen"

func (h *InstitutionHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	filter := database.InstitutionFilter{
		Estado: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("estado"))),
		Search: r.URL.Query().Get("search"),
		Orden:  r.URL.Query().Get("orden"),
	}
	if filter.Estado != "" && !models.IsValidInstitutionStatus(filter.Estado) {
		WriteAPIError(w, http.StatusBadRequest, "Estado de institución inválido", filter.Estado)
		return
	}
	if filter.Orden != "" && !database.IsValidSortOrder(filter.Orden) {
		WriteAPIError(w, http.StatusBadRequest, "Orden inválido", filter.Orden)
		return
	}
	institutions, err := h.Store.ListInstitutions(r.Context(), filter)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al obtener instituciones")
		return
	}
	writeJSON(w, http.StatusOK, institutions)
}

func (h *InstitutionHandler) GetInstitution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de institución inválido", "")
		return
	}
	inst, err := h.Store.GetInstitutionByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al obtener la institución")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// CreateInstitution accepts JSON or a multipart form with an optional "imagen" file.
func (h *InstitutionHandler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	body, err := readFormBody(w, r, h.MaxUploadBytes, institutionImageField)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Datos de institución inválidos", err.Error())
		return
	}
	defer body.Close()

	if missing := missingFields(body, "nombre", "tipo"); len(missing) > 0 {
		WriteAPIError(w, http.StatusBadRequest, "Faltan campos obligatorios", strings.Join(missing, ", "))
		return
	}
	if !h.normalizeEstado(w, body) || !validateInstitutionFields(w, body) {
		return
	}

	imagePath, ok := h.saveImage(w, r, body)
	if !ok {
		return
	}
	if imagePath != "" {
		body.Fields["imagen_url"] = imagePath
	}

	var createdBy *uint
	if user := UserFromContext(r.Context()); user != nil {
		createdBy = &user.ID
	}
	id, err := h.Store.CreateInstitution(r.Context(), createdBy, body.Fields)
	if err != nil {
		if imagePath != "" {
			h.Images.QueueDelete(imagePath)
		}
		writeStoreError(w, h.Log, err, "", "Error al crear la institución")
		return
	}
	if imagePath != "" && !h.Images.QueueThumbnail(id, imagePath) {
		h.Log.Warn("thumbnail queue full, skipping", "institution_id", id)
	}

	inst, err := h.Store.GetInstitutionByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al obtener la institución creada")
		return
	}
	h.Log.Info("institution created", "institution_id", id, "nombre", inst.Nombre)
	writeJSON(w, http.StatusCreated, inst)
}

func (h *InstitutionHandler) UpdateInstitution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de institución inválido", "")
		return
	}
	current, err := h.Store.GetInstitutionByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al obtener la institución")
		return
	}

	body, err := readFormBody(w, r, h.MaxUploadBytes, institutionImageField)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Datos de institución inválidos", err.Error())
		return
	}
	defer body.Close()

	for _, key := range []string{"nombre", "tipo"} {
		if _, present := body.Fields[key]; present && body.String(key) == "" {
			WriteAPIError(w, http.StatusBadRequest, "El campo "+key+" no puede quedar vacío", "")
			return
		}
	}
	if !h.normalizeEstado(w, body) || !validateInstitutionFields(w, body) {
		return
	}

	imagePath, ok := h.saveImage(w, r, body)
	if !ok {
		return
	}
	if imagePath != "" {
		body.Fields["imagen_url"] = imagePath
	}

	if err := h.Store.UpdateInstitution(r.Context(), id, body.Fields); err != nil {
		if imagePath != "" {
			h.Images.QueueDelete(imagePath)
		}
		if errors.Is(err, database.ErrNoFields) {
			WriteAPIError(w, http.StatusBadRequest, "No se proporcionaron campos para actualizar", "")
			return
		}
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al actualizar la institución")
		return
	}

	if imagePath != "" {
		h.Images.QueueDelete(derefAll(current.ImagenURL, current.ImagenMiniatura)...)
		h.Images.QueueThumbnail(id, imagePath)
	}

	updated, err := h.Store.GetInstitutionByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al obtener la institución")
		return
	}
	if updated.Estado != current.Estado {
		h.Events.Broadcast(realtime.Event{
			Type:      realtime.EventInstitutionStatus,
			Data:      map[string]interface{}{"id": updated.ID, "nombre": updated.Nombre, "estado": updated.Estado},
			Timestamp: time.Now().Unix(),
		})
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *InstitutionHandler) DeleteInstitution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de institución inválido", "")
		return
	}
	inst, err := h.Store.GetInstitutionByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al obtener la institución")
		return
	}
	if err := h.Store.DeleteInstitution(r.Context(), id); err != nil {
		writeStoreError(w, h.Log, err, "Institución no encontrada", "Error al eliminar la institución")
		return
	}
	h.Images.QueueDelete(derefAll(inst.ImagenURL, inst.ImagenMiniatura)...)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Institución eliminada", "id": id})
}

// normalizeEstado upper-cases a submitted estado and rejects unknown values.
func (h *InstitutionHandler) normalizeEstado(w http.ResponseWriter, body *formBody) bool {
	if _, present := body.Fields["estado"]; !present {
		return true
	}
	estado := strings.ToUpper(body.String("estado"))
	if estado == "" {
		delete(body.Fields, "estado")
		return true
	}
	if !models.IsValidInstitutionStatus(estado) {
		WriteAPIError(w, http.StatusBadRequest, "Estado de institución inválido", estado)
		return false
	}
	body.Fields["estado"] = estado
	return true
}

// validateInstitutionFields upper-cases the RFC and enforces column lengths the
// SQLite driver does not.
func validateInstitutionFields(w http.ResponseWriter, body *formBody) bool {
	if rfc, ok := body.Fields["rfc"].(string); ok {
		body.Fields["rfc"] = strings.ToUpper(strings.TrimSpace(rfc))
	}
	return checkFieldLengths(w, body)
}

// saveImage stores the uploaded image, if any, and returns its relative path.
func (h *InstitutionHandler) saveImage(w http.ResponseWriter, r *http.Request, body *formBody) (string, bool) {
	if body.File == nil {
		return "", true
	}
	if !media.IsRasterImage(body.Header.Filename) {
		WriteAPIError(w, http.StatusBadRequest, "La imagen debe ser JPG, PNG, GIF, BMP o TIFF", body.Header.Filename)
		return "", false
	}
	relPath, err := h.Processor.ProcessInstitutionImage(r.Context(), body.File)
	if err != nil {
		h.Log.Warn("institution image rejected", "filename", body.Header.Filename, "error", err)
		WriteAPIError(w, http.StatusBadRequest, "No se pudo procesar la imagen", "")
		return "", false
	}
	return relPath, true
}

func derefAll(values ...*string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}
