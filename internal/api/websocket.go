package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// LiveUpdate is pushed to websocket subscribers whenever the displayed state
// may have changed
type LiveUpdate struct {
	Open      bool   `json:"open"`
	IsOn      bool   `json:"is_on"`
	Space     string `json:"space"`
	Switching bool   `json:"switching"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan LiveUpdate
}

// hub fans live updates out to websocket subscribers
type hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger: logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

// serve upgrades the request and blocks until the subscriber disconnects
func (h *hub) serve(w http.ResponseWriter, r *http.Request, initial LiveUpdate) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{conn: conn, send: make(chan LiveUpdate, sendBuffer)}
	sub.send <- initial
	if !h.add(sub) {
		conn.Close()
		return
	}
	h.logger.Debug("Subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeLoop(sub)

	// Inbound messages are ignored; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(sub)
	h.logger.Debug("Subscriber disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (h *hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()

	for update := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteJSON(update); err != nil {
			h.logger.Debug("Websocket write failed", zap.Error(err))
			return
		}
	}

	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	return true
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

// broadcast queues update for every subscriber. A subscriber whose queue is
// full misses the update.
func (h *hub) broadcast(update LiveUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- update:
		default:
			h.logger.Warn("Dropping update for slow subscriber")
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// close disconnects every subscriber and rejects new ones
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}
