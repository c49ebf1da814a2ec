package messaging

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const writeWait = 5 * time.Second

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans chat events out to the websockets open on each conversation.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{}), log: log}
}

func (h *Hub) register(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[key]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[key] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[key]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
}

// Subscribers counts open sockets on a conversation.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[key])
}

func (h *Hub) broadcast(key string, evt wsEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[key]))
	for c := range h.rooms[key] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		if err := c.send(payload); err != nil {
			h.log.Debug().Err(err).Str("conversation", key).Msg("ws write failed")
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serve upgrades the request and holds the socket until the peer leaves.
// The protocol is server push; anything the client sends is discarded.
func (h *Hub) serve(c echo.Context, key, userID string) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := &client{conn: ws}
	h.register(key, cl)
	h.broadcast(key, wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(key, cl)
			_ = ws.Close()
			h.broadcast(key, wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
			return nil
		}
	}
}
