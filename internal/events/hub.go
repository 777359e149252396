package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voice-platform/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub keeps one room per business and pushes events to its websocket clients.
// Room membership changes and broadcasts are serialized by the run loop.
type Hub struct {
	log     *slog.Logger
	metrics Metrics

	mu    sync.RWMutex
	rooms map[string]map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	topic string
}

func NewHub(log *slog.Logger, m Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        logger.Component(log, "events_hub"),
		metrics:    m,
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for topic, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
				delete(h.rooms, topic)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.topic] == nil {
				h.rooms[c.topic] = make(map[*client]bool)
			}
			h.rooms[c.topic][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[c.topic]; ok {
				if _, exists := clients[c]; exists {
					delete(clients, c)
					close(c.send)
					if len(clients) == 0 {
						delete(h.rooms, c.topic)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("event encode failed", "type", string(ev.Type), "err", err)
				continue
			}
			h.mu.Lock()
			for c := range h.rooms[ev.Topic] {
				select {
				case c.send <- raw:
				default:
					// Slow consumer: drop it rather than stall the room.
					close(c.send)
					delete(h.rooms[ev.Topic], c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements Publisher. It never blocks: when the broadcast buffer is
// full the event is dropped and logged.
func (h *Hub) Publish(_ context.Context, topic string, eventType Type, payload any) {
	h.deliver(Event{Topic: topic, Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
}

func (h *Hub) deliver(ev Event) {
	select {
	case h.broadcast <- ev:
		if h.metrics != nil {
			h.metrics.EventPublished(string(ev.Type))
		}
	default:
		h.log.Warn("event dropped", "topic", ev.Topic, "type", string(ev.Type))
	}
}

// Subscribers reports how many clients are in topic's room.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

// ServeWS upgrades the request and joins the connection to topic's room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), topic: topic}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump only services control frames; clients do not publish.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket closed", "topic", c.topic, "err", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
