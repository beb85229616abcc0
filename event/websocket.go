package event

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512
	wsBufferSize     = 1024
	clientBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type outbound struct {
	event *model.Event
	ping  bool
}

type client struct {
	conn        *websocket.Conn
	send        chan outbound
	executionId string
	closeOnce   sync.Once
}

func (c *client) matches(ev model.Event) bool {
	return len(c.executionId) == 0 || c.executionId == ev.ExecutionId
}

// Hub streams events to websocket clients. A client connecting with an
// executionId query parameter only receives events of that execution.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	pinger  *util.TickWorker
}

func NewHub(wg *sync.WaitGroup) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
	}
	h.pinger = util.NewTickWorker("websocket-ping", pingPeriod, h.ping, wg)
	return h
}

func (h *Hub) Start() {
	h.pinger.Start()
}

func (h *Hub) Stop() {
	h.pinger.Stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.closeClient(c)
		delete(h.clients, c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matches(ev) {
			continue
		}
		ev := ev
		select {
		case c.send <- outbound{event: &ev}:
		default:
			logger.Warn("websocket client is slow, dropping event", zap.String("executionId", ev.ExecutionId))
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- outbound{ping: true}:
		default:
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:        conn,
		send:        make(chan outbound, clientBufferSize),
		executionId: r.URL.Query().Get("executionId"),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.closeClient(c)
	}
}

func (h *Hub) closeClient(c *client) {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		var err error
		if msg.ping {
			err = c.conn.WriteMessage(websocket.PingMessage, nil)
		} else {
			err = c.conn.WriteJSON(msg.event)
		}
		if err != nil {
			h.unregister(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
