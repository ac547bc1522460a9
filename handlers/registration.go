package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sei-platform/seibackend/classification"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/ocr"
)

// AssetRemover deletes stored assets in the background.
type AssetRemover interface {
	QueueDelete(paths ...string)
}

type RegistrationHandler struct {
	Store          *database.Store
	Processor      *media.Processor
	Assets         AssetRemover
	OCR            ocr.Extractor
	MaxUploadBytes int64
	Log            *logger.Logger
}

const (
	cvField       = "cv"
	documentField = "documento"
)

var fieldLengthLimits = []struct {
	key     string
	max     int
	message string
}{
	{"rfc", 13, "El RFC debe tener como máximo 13 caracteres"},
	{"curp", 18, "La CURP debe tener como máximo 18 caracteres"},
}

// ListRegistrations is admin-only and includes deactivated registrations.
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	researchers, err := h.Store.ListResearchers(r.Context())
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al obtener registros")
		return
	}
	writeJSON(w, http.StatusOK, researchers)
}

// CreateRegistration registers the caller as a researcher.
func (h *RegistrationHandler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "Se requiere autenticación", "")
		return
	}
	body, err := readFormBody(w, r, h.MaxUploadBytes, "")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Datos de registro inválidos", err.Error())
		return
	}
	defer body.Close()

	if missing := missingFields(body, "nombre_completo", "correo"); len(missing) > 0 {
		WriteAPIError(w, http.StatusBadRequest, "Faltan campos obligatorios", strings.Join(missing, ", "))
		return
	}
	if !validateRegistrationFields(w, body) {
		return
	}

	id, err := h.Store.CreateResearcher(r.Context(), &user.ID, body.Fields)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al crear el registro")
		return
	}
	researcher, err := h.Store.GetResearcherByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al obtener el registro creado")
		return
	}
	h.Log.Info("researcher registered", "researcher_id", id, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, researcher)
}

func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	researcher, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, researcher)
}

func (h *RegistrationHandler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	researcher, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	body, err := readFormBody(w, r, h.MaxUploadBytes, "")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Datos de registro inválidos", err.Error())
		return
	}
	defer body.Close()

	for _, key := range []string{"nombre_completo", "correo"} {
		if _, present := body.Fields[key]; present && body.String(key) == "" {
			WriteAPIError(w, http.StatusBadRequest, "El campo "+key+" no puede quedar vacío", "")
			return
		}
	}
	if !validateRegistrationFields(w, body) {
		return
	}

	if err := h.Store.UpdateResearcher(r.Context(), researcher.ID, body.Fields); err != nil {
		if errors.Is(err, database.ErrNoFields) {
			WriteAPIError(w, http.StatusBadRequest, "No se proporcionaron campos para actualizar", "")
			return
		}
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al actualizar el registro")
		return
	}
	updated, err := h.Store.GetResearcherByID(r.Context(), researcher.ID)
	if err != nil {
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al obtener el registro")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRegistration deactivates the registration; rows are never removed.
func (h *RegistrationHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de registro inválido", "")
		return
	}
	if err := h.Store.SetResearcherActive(r.Context(), id, false); err != nil {
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al desactivar el registro")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Registro desactivado", "id": id})
}

// UploadCV stores a PDF curriculum for the registration and replaces any previous one.
func (h *RegistrationHandler) UploadCV(w http.ResponseWriter, r *http.Request) {
	researcher, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	body, err := readFormBody(w, r, h.MaxUploadBytes, cvField)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Archivo inválido", err.Error())
		return
	}
	defer body.Close()
	if body.File == nil {
		WriteAPIError(w, http.StatusBadRequest, "Falta el archivo del CV", cvField)
		return
	}

	relPath, err := h.Processor.SaveCV(r.Context(), body.File)
	if err != nil {
		if errors.Is(err, media.ErrNotPDF) {
			WriteAPIError(w, http.StatusBadRequest, "El CV debe ser un archivo PDF", "")
			return
		}
		h.Log.Error("failed to save CV", "researcher_id", researcher.ID, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "No se pudo guardar el CV", "")
		return
	}
	if err := h.Store.SetResearcherCV(r.Context(), researcher.ID, relPath); err != nil {
		h.Assets.QueueDelete(relPath)
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al guardar el CV")
		return
	}
	if researcher.CVURL != nil && *researcher.CVURL != "" {
		h.Assets.QueueDelete(*researcher.CVURL)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": researcher.ID, "cv_url": relPath})
}

// ExtractDocument runs OCR over an uploaded document and returns the recognised
// registration fields for the form to prefill. Nothing is stored.
func (h *RegistrationHandler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	body, err := readFormBody(w, r, h.MaxUploadBytes, documentField)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Archivo inválido", err.Error())
		return
	}
	defer body.Close()
	if body.File == nil {
		WriteAPIError(w, http.StatusBadRequest, "Falta el documento", documentField)
		return
	}

	data, err := io.ReadAll(body.File)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "No se pudo leer el documento", "")
		return
	}
	mimeType := body.Header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	fields, err := h.OCR.Extract(r.Context(), data, mimeType)
	if err != nil {
		h.Log.Error("OCR extraction failed", "mime_type", mimeType, "error", err)
		WriteAPIError(w, http.StatusBadGateway, "No se pudo procesar el documento", "")
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// loadOwned loads the {id} registration and checks the caller owns it or is an admin.
func (h *RegistrationHandler) loadOwned(w http.ResponseWriter, r *http.Request) (models.Researcher, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de registro inválido", "")
		return models.Researcher{}, false
	}
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "Se requiere autenticación", "")
		return models.Researcher{}, false
	}
	researcher, err := h.Store.GetResearcherByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Registro no encontrado", "Error al obtener el registro")
		return models.Researcher{}, false
	}
	if !user.IsAdmin && (researcher.UserID == nil || *researcher.UserID != user.ID) {
		WriteAPIError(w, http.StatusForbidden, "No tiene permiso para acceder a este registro", "")
		return models.Researcher{}, false
	}
	return researcher, true
}

// validateRegistrationFields normalizes identifiers and rejects values the store
// would refuse.
func validateRegistrationFields(w http.ResponseWriter, body *formBody) bool {
	for _, key := range []string{"rfc", "curp"} {
		if _, present := body.Fields[key]; present {
			body.Fields[key] = strings.ToUpper(body.String(key))
		}
	}
	if _, present := body.Fields["correo"]; present {
		body.Fields["correo"] = strings.ToLower(body.String("correo"))
	}
	if !checkFieldLengths(w, body) {
		return false
	}
	if nivel := strings.ToLower(body.String("nivel_sni")); nivel != "" {
		if !classification.IsValidKey(nivel) {
			WriteAPIError(w, http.StatusBadRequest, "Nivel SNI inválido", strings.Join(classification.GetAllKeys(), ", "))
			return false
		}
		body.Fields["nivel_sni"] = nivel
	}
	return true
}

func checkFieldLengths(w http.ResponseWriter, body *formBody) bool {
	for _, limit := range fieldLengthLimits {
		if utf8.RuneCountInString(body.String(limit.key)) > limit.max {
			WriteAPIError(w, http.StatusBadRequest, limit.message, "")
			return false
		}
	}
	return true
}
