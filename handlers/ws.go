package handlers

import (
	"net/http"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/realtime"
)

type WSHandler struct {
	Store *database.Store
	Hub   *realtime.Hub
	Log   *logger.Logger
}

// ServeWS upgrades an authenticated researcher to the realtime event stream.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	me, ok := callerResearcher(w, r, h.Store, h.Log)
	if !ok {
		return
	}
	h.Hub.ServeWS(w, r, me.ID)
}
