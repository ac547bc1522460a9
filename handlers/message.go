package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/realtime"
	"github.com/sei-platform/seibackend/repository"
)

type MessageHandler struct {
	Store    *database.Store
	Messages repository.MessageRepository
	Events   Notifier
	Log      *logger.Logger
}

type sendMessageRequest struct {
	DestinatarioID uint   `json:"destinatario_id"`
	Asunto         string `json:"asunto"`
	Contenido      string `json:"contenido"`
}

type messageList struct {
	Mensajes []models.Message `json:"mensajes"`
	NoLeidos int64            `json:"no_leidos"`
}

// ListMessages returns the caller's messages; ?con={id} narrows to one conversation.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	var counterpart *uint
	if raw := r.URL.Query().Get("con"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			WriteAPIError(w, http.StatusBadRequest, "Parámetro 'con' inválido", raw)
			return
		}
		cid := uint(id)
		counterpart = &cid
	}

	msgs, err := h.Messages.ListForResearcher(me.ID, counterpart)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al obtener mensajes")
		return
	}
	unread, err := h.Messages.CountUnread(me.ID)
	if err != nil {
		writeStoreError(w, h.Log, err, "", "Error al obtener mensajes")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messageList{Mensajes: msgs, NoLeidos: unread})
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	content := strings.TrimSpace(req.Contenido)
	if req.DestinatarioID == 0 || content == "" {
		WriteAPIError(w, http.StatusBadRequest, "Faltan campos obligatorios", "destinatario_id, contenido")
		return
	}
	if req.DestinatarioID == me.ID {
		WriteAPIError(w, http.StatusBadRequest, "No puede enviarse un mensaje a sí mismo", "")
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

	msg := &models.Message{RemitenteID: me.ID, DestinatarioID: target.ID, Contenido: content}
	if subject := strings.TrimSpace(req.Asunto); subject != "" {
		msg.Asunto = &subject
	}
	if err := h.Messages.Create(msg); err != nil {
		writeStoreError(w, h.Log, err, "", "Error al enviar el mensaje")
		return
	}

	h.Events.Notify(target.ID, realtime.Event{
		Type:      realtime.EventMessage,
		Data:      map[string]interface{}{"id": msg.ID, "remitente_id": me.ID, "remitente": me.NombreCompleto, "asunto": msg.Asunto},
		Timestamp: time.Now().Unix(),
	})
	writeJSON(w, http.StatusCreated, msg)
}

// MarkRead is allowed for the recipient only.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	msg, ok := h.load(w, r)
	if !ok {
		return
	}
	if msg.DestinatarioID != me.ID {
		WriteAPIError(w, http.StatusForbidden, "Solo el destinatario puede marcar el mensaje como leído", "")
		return
	}
	if err := h.Messages.MarkRead(msg.ID); err != nil {
		writeStoreError(w, h.Log, err, "Mensaje no encontrado", "Error al actualizar el mensaje")
		return
	}
	msg.Leido = true
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	msg, ok := h.load(w, r)
	if !ok {
		return
	}
	if !msg.Involves(me.ID) {
		WriteAPIError(w, http.StatusForbidden, "No forma parte de esta conversación", "")
		return
	}
	if err := h.Messages.Delete(msg.ID); err != nil {
		writeStoreError(w, h.Log, err, "Mensaje no encontrado", "Error al eliminar el mensaje")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Mensaje eliminado", "id": msg.ID})
}

func (h *MessageHandler) load(w http.ResponseWriter, r *http.Request) (*models.Message, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "ID de mensaje inválido", "")
		return nil, false
	}
	msg, err := h.Messages.GetByID(id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Mensaje no encontrado", "Error al obtener el mensaje")
		return nil, false
	}
	return msg, true
}
