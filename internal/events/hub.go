// Package events fans committed ledger events out to WebSocket clients.
package events

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tinysubs/internal/ledger"
	"tinysubs/internal/metrics"
)

const (
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	replayPage   = 500
	clientBuffer = 256
)

// Replayer serves committed events for catch-up after a client's cursor.
type Replayer interface {
	Events(ctx context.Context, afterSeq uint64, limit int) ([]ledger.Event, error)
}

type client struct {
	ch   chan ledger.Event
	exit chan struct{}
	// lagged is closed on the first event the client could not take; the
	// connection is then closed so the client resumes from its last seq.
	lagged chan struct{}
	behind bool // guarded by Hub.mu
}

// Hub implements the ledger Publisher. Publish never blocks; a client whose
// buffer is full is cut off after what it already holds is flushed.
type Hub struct {
	mu       sync.Mutex
	clients  map[uint64]*client
	nextID   uint64
	replay   Replayer
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHub(replay Replayer, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uint64]*client),
		replay:  replay,
		log:     log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Publish(events []ledger.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		for _, ev := range events {
			if c.behind {
				metrics.EventStreamDropped.Inc()
				continue
			}
			select {
			case c.ch <- ev:
			default:
				metrics.EventStreamDropped.Inc()
				c.behind = true
				close(c.lagged)
			}
		}
	}
}

func (h *Hub) register() (uint64, *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	c := &client{
		ch:     make(chan ledger.Event, clientBuffer),
		exit:   make(chan struct{}),
		lagged: make(chan struct{}),
	}
	h.clients[id] = c
	metrics.EventStreamClients.Set(float64(len(h.clients)))
	return id, c
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
	metrics.EventStreamClients.Set(float64(len(h.clients)))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events as JSON text frames.
// ?after=N first replays every stored event with seq > N. A client that falls
// behind is closed with 1013 (try again later) naming its last seq.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid after", http.StatusBadRequest)
			return
		}
		after = n
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	// Register before replaying so nothing committed in between is missed.
	id, c := h.register()
	defer h.remove(id)

	go h.readLoop(ws, c)

	last, err := h.catchUp(r.Context(), ws, after)
	if err != nil {
		h.log.Debug("event replay aborted", zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-c.ch:
			if ev.Seq <= last {
				continue
			}
			if err := h.write(ws, ev); err != nil {
				return
			}
			last = ev.Seq
		case <-c.lagged:
			last, err = h.flush(ws, c, last)
			if err != nil {
				return
			}
			h.log.Debug("event stream client fell behind", zap.Uint64("last_seq", last))
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "lagging, resume with after="+strconv.FormatUint(last, 10))
			ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			return
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.exit:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) catchUp(ctx context.Context, ws *websocket.Conn, after uint64) (uint64, error) {
	if h.replay == nil {
		return after, nil
	}
	for {
		page, err := h.replay.Events(ctx, after, replayPage)
		if err != nil {
			return after, err
		}
		for _, ev := range page {
			if err := h.write(ws, ev); err != nil {
				return after, err
			}
			after = ev.Seq
		}
		if len(page) < replayPage {
			return after, nil
		}
	}
}

// flush writes whatever is still buffered for c. Nothing is published to a
// lagged client, so the buffer only shrinks.
func (h *Hub) flush(ws *websocket.Conn, c *client, last uint64) (uint64, error) {
	for {
		select {
		case ev := <-c.ch:
			if ev.Seq <= last {
				continue
			}
			if err := h.write(ws, ev); err != nil {
				return last, err
			}
			last = ev.Seq
		default:
			return last, nil
		}
	}
}

func (h *Hub) write(ws *websocket.Conn, ev ledger.Event) error {
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteJSON(ev)
}

// readLoop discards client frames and closes exit when the peer goes away.
func (h *Hub) readLoop(ws *websocket.Conn, c *client) {
	defer close(c.exit)
	ws.SetReadLimit(512)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
