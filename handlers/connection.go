package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/realtime"
	"github.com/sei-platform/seibackend/repository"
)

// Notifier pushes an event to one researcher's open connections.
type Notifier interface {
	Notify(researcherID uint, event realtime.Event)
}

type ConnectionHandler struct {
	Store       *database.Store
	Connections repository.ConnectionRepository
	Events      Notifier
	Log         *logger.Logger
}

type connectionRequest struct {
	DestinatarioID uint   `json:"destinatario_id"`
	Mensaje        string `json:"mensaje"`
}

type connectionAnswer struct {
	Estado string `json:"estado"`
}

func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	estado := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("estado")))
	if estado != "" && estado != models.ConnectionPending && !models.IsValidConnectionAnswer(estado) {
		WriteAPIError(w, http.StatusBadRequest, "Estado de conexión inválido", estado)
		return
	}
	conns, err := h.Connections.ListForResearcher(me.ID, estado)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al obtener conexiones")
		return
	}
	if conns == nil {
		conns = []models.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *ConnectionHandler) RequestConnection(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	if req.DestinatarioID == 0 {
		WriteAPIError(w, http.StatusBadRequest, "Faltan campos obligatorios", "destinatario_id")
		return
	}
	if req.DestinatarioID == me.ID {
		WriteAPIError(w, http.StatusBadRequest, "No puede enviarse una solicitud de conexión a sí mismo", "")
		return
	}
	target, err := h.Store.GetResearcherByID(r.Context(), req.DestinatarioID)
	if err != nil || !target.Activo {
		if err != nil && !isNotFound(err) {
			writeStoreError(w, h.Log, err, "", "Error al obtener el investigador")
			return
		}
		WriteAPIError(w, http.StatusNotFound, "Investigador no encontrado", "")
		return
	}

	existing, err := h.Connections.FindBetween(me.ID, target.ID)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al verificar conexiones")
		return
	}
	if existing != nil {
		WriteAPIError(w, http.StatusConflict, "Ya existe una solicitud de conexión entre estos investigadores", "")
		return
	}

	conn := &models.Connection{SolicitanteID: me.ID, DestinatarioID: target.ID}
	if msg := strings.TrimSpace(req.Mensaje); msg != "" {
		conn.Mensaje = &msg
	}
	if err := h.Connections.Create(conn); err != nil {
		writeStoreError(w, h.Log, err, "", "Error al crear la solicitud de conexión")
		return
	}

	h.Events.Notify(target.ID, realtime.Event{
		Type:      realtime.EventConnectionRequest,
		Data:      map[string]interface{}{"id": conn.ID, "solicitante_id": me.ID, "solicitante": me.NombreCompleto},
		Timestamp: time.Now().Unix(),
	})
	writeJSON(w, http.StatusCreated, conn)
}

// AnswerConnection lets the recipient accept or reject a pending request.
func (h *ConnectionHandler) AnswerConnection(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	conn, ok := h.load(w, r)
	if !ok {
		return
	}
	if conn.DestinatarioID != me.ID {
		WriteAPIError(w, http.StatusForbidden, "Solo el destinatario puede responder la solicitud", "")
		return
	}

	var req connectionAnswer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	estado := strings.ToLower(strings.TrimSpace(req.Estado))
	if !models.IsValidConnectionAnswer(estado) {
		WriteAPIError(w, http.StatusBadRequest, "Estado de conexión inválido", "aceptada, rechazada")
		return
	}
	if conn.Estado != models.ConnectionPending {
		WriteAPIError(w, http.StatusConflict, "La solicitud ya fue respondida", conn.Estado)
		return
	}

	if err := h.Connections.UpdateEstado(conn.ID, estado); err != nil {
		writeStoreError(w, h.Log, err, "Conexión no encontrada", "Error al actualizar la conexión")
		return
	}
	conn.Estado = estado

	h.Events.Notify(conn.SolicitanteID, realtime.Event{
		Type:      realtime.EventConnectionAnswer,
		Data:      map[string]interface{}{"id": conn.ID, "estado": estado, "destinatario_id": me.ID},
		Timestamp: time.Now().Unix(),
	})
	writeJSON(w, http.StatusOK, conn)
}

func (h *ConnectionHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	conn, ok := h.load(w, r)
	if !ok {
		return
	}
	if !conn.Involves(me.ID) {
		WriteAPIError(w, http.StatusForbidden, "No forma parte de esta conexión", "")
		return
	}
	if err := h.Connections.Delete(conn.ID); err != nil {
		writeStoreError(w, h.Log, err, "Conexión no encontrada", "Error al eliminar la conexión")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Conexión eliminada", "id": conn.ID})
}

func (h *ConnectionHandler) load(w http.ResponseWriter, r *http.Request) (*models.Connection, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de conexión inválido", "")
		return nil, false
	}
	conn, err := h.Connections.GetByID(id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Conexión no encontrada", "Error al obtener la conexión")
		return nil, false
	}
	return conn, true
}
