package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
	"github.com/mindgate/mindgate/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Loopback-only daemon; the UI host runtime is the sole client.
		return true
	},
}

// CommandHandler consumes parsed UI-host commands.
type CommandHandler interface {
	HandleCommand(ctx context.Context, msg any) error
	OnAck(eventID string)
}

// Hub manages UI-host websocket connections and provides at-least-once
// event delivery: every event stays pending until acknowledged, and is
// redelivered on a fixed cadence — including to a runtime that attaches
// later. Timer expirations are not allowed to vanish while unobserved.
type Hub struct {
	log      *logging.Logger
	metrics  *monitoring.Metrics
	commands CommandHandler
	interval time.Duration

	mu      sync.Mutex
	conns   map[*hubConn]struct{}
	pending map[string]*pendingEvent
	order   []string
}

type pendingEvent struct {
	payload  []byte
	typ      protocol.MessageType
	attempts int
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. The interval paces redelivery of unacked
// events.
func NewHub(commands CommandHandler, interval time.Duration, log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Hub{
		log:      log.Named("hub"),
		metrics:  metrics,
		commands: commands,
		interval: interval,
		conns:    make(map[*hubConn]struct{}),
		pending:  make(map[string]*pendingEvent),
	}
}

// Broadcast enqueues an event for delivery. The eventID must be unique;
// the event is retained until an Ack for it arrives.
func (h *Hub) Broadcast(typ protocol.MessageType, eventID string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("type", string(typ)), zap.Error(err))
		return
	}

	h.mu.Lock()
	if _, ok := h.pending[eventID]; !ok {
		h.order = append(h.order, eventID)
	}
	h.pending[eventID] = &pendingEvent{payload: payload, typ: typ}
	h.metrics.PendingEvents.Set(float64(len(h.pending)))
	for c := range h.conns {
		c.offer(payload)
	}
	h.mu.Unlock()

	h.metrics.WSMessages.WithLabelValues("out", string(typ)).Inc()
}

// Pending returns the number of unacknowledged events.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Run drives the redelivery loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.redeliver()
		}
	}
}

func (h *Hub) redeliver() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 || len(h.conns) == 0 {
		return
	}
	// Emission order, always: a retained verdict must never land after
	// the foreground transition that cancels it.
	for _, id := range h.order {
		ev := h.pending[id]
		ev.attempts++
		h.metrics.DeliveryRetries.Inc()
		if ev.attempts%30 == 0 {
			h.log.Warn("event still unacknowledged",
				zap.String("event_id", id),
				zap.String("type", string(ev.typ)),
				zap.Int("attempts", ev.attempts),
			)
		}
		for c := range h.conns {
			c.offer(ev.payload)
		}
	}
}

func (h *Hub) ack(eventID string) {
	h.mu.Lock()
	_, ok := h.pending[eventID]
	if ok {
		delete(h.pending, eventID)
		for i, id := range h.order {
			if id == eventID {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
		h.metrics.PendingEvents.Set(float64(len(h.pending)))
	}
	h.mu.Unlock()
	if ok {
		h.commands.OnAck(eventID)
	}
}

// HandleConnection upgrades an HTTP request to the event stream. All
// pending events are flushed to the new connection immediately: a
// reattaching runtime sees everything it missed.
func (h *Hub) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &hubConn{ws: ws, send: make(chan []byte, 64)}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	for _, id := range h.order {
		conn.offer(h.pending[id].payload)
	}
	h.mu.Unlock()
	h.metrics.WSConnections.Inc()
	h.log.Info("ui host attached", zap.String("remote", ws.RemoteAddr().String()))

	go conn.writeLoop()
	h.readLoop(c.Request.Context(), conn)

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	close(conn.send)
	ws.Close()
	h.metrics.WSConnections.Dec()
	h.log.Info("ui host detached")
}

func (h *Hub) readLoop(ctx context.Context, conn *hubConn) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.ParseCommand(raw)
		if err != nil {
			h.log.Warn("invalid command", zap.Error(err))
			continue
		}

		if ack, ok := msg.(protocol.Ack); ok {
			h.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeAck)).Inc()
			h.ack(ack.EventID)
			continue
		}

		var env protocol.Envelope
		_ = json.Unmarshal(raw, &env)
		h.metrics.WSMessages.WithLabelValues("in", string(env.Type)).Inc()

		if err := h.commands.HandleCommand(ctx, msg); err != nil {
			h.log.Error("command failed", zap.String("type", string(env.Type)), zap.Error(err))
		}
	}
}

func (c *hubConn) offer(payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Slow consumer; redelivery will try again.
	}
}

func (c *hubConn) writeLoop() {
	for payload := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
