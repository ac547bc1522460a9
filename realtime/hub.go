package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sei-platform/seibackend/logger"
)

// Event types pushed to researchers.
const (
	EventMessage           = "mensaje"
	EventConnectionRequest = "conexion_solicitud"
	EventConnectionAnswer  = "conexion_respuesta"
	EventInstitutionStatus = "institucion_estado"
)

// Event represents a message sent to websocket clients
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type Client struct {
	researcherID uint
	conn         *websocket.Conn
	send         chan []byte
}

type delivery struct {
	researcherID uint // 0 means every client
	payload      []byte
}

// Hub keeps the open websocket connections of each researcher and routes events to
// them. A researcher may have several connections (tabs, devices).
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	outbound   chan delivery
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan delivery, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run routes registrations and events until ctx is cancelled, then closes every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.researcherID] == nil {
				h.clients[client.researcherID] = make(map[*Client]bool)
			}
			h.clients[client.researcherID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
		case d := <-h.outbound:
			h.mu.Lock()
			for rid, set := range h.clients {
				if d.researcherID != 0 && rid != d.researcherID {
					continue
				}
				for client := range set {
					select {
					case client.send <- d.payload:
					default:
						// slow consumer
						h.removeLocked(client)
					}
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.researcherID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.researcherID)
	}
}

// ClientCount reports how many connections researcherID currently has open.
func (h *Hub) ClientCount(researcherID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[researcherID])
}

// Notify sends event to every connection of researcherID. Events for researchers
// without an open connection are dropped.
func (h *Hub) Notify(researcherID uint, event Event) {
	if researcherID == 0 {
		return
	}
	h.enqueue(researcherID, event)
}

// Broadcast sends event to every connected client.
func (h *Hub) Broadcast(event Event) {
	h.enqueue(0, event)
}

func (h *Hub) enqueue(researcherID uint, event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	encoded, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal realtime event", "type", event.Type, "error", err)
		return
	}
	select {
	case h.outbound <- delivery{researcherID: researcherID, payload: encoded}:
	default:
		h.log.Warn("dropping realtime event, outbound channel full", "type", event.Type)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers it for researcherID. It returns when
// the client disconnects or the hub stops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, researcherID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	client := &Client{researcherID: researcherID, conn: conn, send: make(chan []byte, 64)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// writer
	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// reader (just consume pings/close)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
