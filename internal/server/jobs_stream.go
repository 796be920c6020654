package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/events"
)

// JobStreamHandler pushes job lifecycle events to websocket subscribers.
// Each connection only receives events for the authenticated account.
type JobStreamHandler struct {
	mu      sync.Mutex
	clients map[chan []byte]string
	closed  bool
	log     zerolog.Logger
}

// NewJobStreamHandler creates a new job stream handler subscribed to the bus.
func NewJobStreamHandler(bus *events.Bus, log zerolog.Logger) *JobStreamHandler {
	h := &JobStreamHandler{
		clients: make(map[chan []byte]string),
		log:     log.With().Str("component", "job_stream").Logger(),
	}

	forward := func(event *events.Event) { h.broadcast(event) }
	bus.Subscribe(events.JobCreated, forward)
	bus.Subscribe(events.JobStatusChanged, forward)

	return h
}

// ServeHTTP handles GET /ws/jobs
func (h *JobStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := make(chan []byte, 16)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[ch] = account.ID.String()
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Close disconnects all subscribers.
func (h *JobStreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

// broadcast fans an event out to subscribers owning the event's account.
func (h *JobStreamHandler) broadcast(event *events.Event) {
	userID, _ := event.Data["user_id"].(string)
	if userID == "" {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal job event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch, owner := range h.clients {
		if owner != userID {
			continue
		}
		select {
		case ch <- msg:
		default:
			// Slow consumer, drop the event rather than block the bus.
		}
	}
}
