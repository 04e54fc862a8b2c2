// Package livebus streams job status updates to WebSocket clients
// (spec §6, WS /meeting/ws/{request_id}).
//
// Grounded on the teacher's internal/sse.Broadcaster: the same
// register/unregister/broadcast channel triangle arbitrated by a single
// listen() goroutine, the same non-blocking send-or-skip-slow-client
// policy. Two things change for the new transport. First, subscriptions
// key on RequestID rather than JobID, since §6's WS route is addressed by
// request_id. Second, the broadcast side is no longer fed directly by
// in-process callers — a single goroutine subscribes to the broker's
// job_updates pub/sub topic (internal/broker) and feeds Hub.Broadcast, so
// any process (a worker on another machine) can drive the same fan-out.
// Transport is gorilla/websocket instead of net/http's flusher-based SSE.
package livebus

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/broker"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 25 * time.Second
	clientSendSize = 16
)

// Event is one message pushed to a subscriber.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type subscription struct {
	requestID string
	ch        chan Event
}

// Hub manages WebSocket subscriptions keyed by request_id and fans out
// status updates received from the broker.
type Hub struct {
	upgrader    websocket.Upgrader
	subscribers map[string]map[chan Event]bool
	register    chan subscription
	unregister  chan subscription
	broadcast   chan struct {
		requestID string
		event     Event
	}
	shutdown chan struct{}
	mutex    sync.RWMutex
}

// NewHub starts the hub's dispatch goroutine.
func NewHub() *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[string]map[chan Event]bool),
		register:    make(chan subscription),
		unregister:  make(chan subscription),
		broadcast: make(chan struct {
			requestID string
			event     Event
		}),
		shutdown: make(chan struct{}),
	}
	go h.listen()
	return h
}

func (h *Hub) listen() {
	for {
		select {
		case sub := <-h.register:
			h.mutex.Lock()
			if h.subscribers[sub.requestID] == nil {
				h.subscribers[sub.requestID] = make(map[chan Event]bool)
			}
			h.subscribers[sub.requestID][sub.ch] = true
			h.mutex.Unlock()
			logger.Debug("livebus: client registered", "request_id", sub.requestID)

		case sub := <-h.unregister:
			h.mutex.Lock()
			if clients, ok := h.subscribers[sub.requestID]; ok {
				delete(clients, sub.ch)
				close(sub.ch)
				if len(clients) == 0 {
					delete(h.subscribers, sub.requestID)
				}
			}
			h.mutex.Unlock()
			logger.Debug("livebus: client unregistered", "request_id", sub.requestID)

		case msg := <-h.broadcast:
			h.mutex.RLock()
			if clients, ok := h.subscribers[msg.requestID]; ok {
				for c := range clients {
					select {
					case c <- msg.event:
					default:
						logger.Warn("livebus: skipping slow client", "request_id", msg.requestID)
					}
				}
			}
			h.mutex.RUnlock()

		case <-h.shutdown:
			h.mutex.Lock()
			for _, clients := range h.subscribers {
				for c := range clients {
					close(c)
				}
			}
			h.subscribers = nil
			h.mutex.Unlock()
			return
		}
	}
}

// Shutdown stops the hub and closes every client channel.
func (h *Hub) Shutdown() {
	close(h.shutdown)
}

// Broadcast pushes an event to every client subscribed to requestID.
func (h *Hub) Broadcast(requestID string, eventType string, payload any) {
	h.broadcast <- struct {
		requestID string
		event     Event
	}{requestID: requestID, event: Event{Type: eventType, Payload: payload}}
}

// ConsumeBroker runs a long-lived subscription to the broker's job_updates
// topic, translating each StatusUpdate into a Broadcast call. Intended to
// run in its own goroutine for the lifetime of the server.
func (h *Hub) ConsumeBroker(ctx context.Context, b *broker.Broker) error {
	return b.SubscribeStatus(ctx, func(update broker.StatusUpdate) {
		h.Broadcast(update.RequestID, "status", update)
	})
}

// ServeWS upgrades the connection and streams events for requestID until
// the client disconnects or the server shuts down. If snapshot is non-nil
// it is sent as a "status" event immediately after the "connected" event,
// so a client sees current state before any subsequent broadcast.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, requestID string, snapshot any) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan Event, clientSendSize)
	sub := subscription{requestID: requestID, ch: ch}
	h.register <- sub
	defer func() {
		select {
		case h.unregister <- sub:
		case <-h.shutdown:
		}
	}()

	// Drain client reads so gorilla's control-frame handling (pong, close)
	// keeps running; this connection is write-only from the server's side.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	conn.WriteJSON(Event{Type: "connected", Payload: map[string]string{"request_id": requestID}})
	if snapshot != nil {
		conn.WriteJSON(Event{Type: "status", Payload: snapshot})
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
