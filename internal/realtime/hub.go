// Package realtime pushes booking and room status changes to connected dashboards.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/events"
	"hotelbooking/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	module       = "realtime"
	redisChannel = "hotelbooking:status_events"
	sendBuffer   = 64
)

type client struct {
	actor domain.ActorContext
	send  chan []byte
}

// Hub fans events out to local websocket clients. With redis, events published on one
// instance reach clients on every instance.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	rdb      *redis.Client
	instance string
	log      logger.ILogger
}

type envelope struct {
	Origin string       `json:"origin"`
	Event  events.Event `json:"event"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		rdb:      rdb,
		instance: uuid.NewString(),
		log:      log,
	}
}

func (h *Hub) register(actor domain.ActorContext) *client {
	c := &client{actor: actor, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info(module, "Client registered", map[string]interface{}{"user_id": actor.UserID, "role": actor.Role})
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handle is the event bus subscriber.
func (h *Hub) Handle(ctx context.Context, e events.Event) error {
	h.deliver(e)
	if h.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: h.instance, Event: e})
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, redisChannel, payload).Err()
}

// Run listens for events from other instances until ctx ends. Without redis it returns at once.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.log.Warn(module, "Dropping malformed cluster event", map[string]interface{}{"error": err.Error()})
				continue
			}
			if env.Origin == h.instance {
				continue
			}
			h.deliver(env.Event)
		}
	}
}

func (h *Hub) deliver(e events.Event) {
	data, err := json.Marshal(frame{Type: "status", Data: e})
	if err != nil {
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !visible(c.actor, e) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn(module, "Client send buffer full, dropping connection", map[string]interface{}{"user_id": c.actor.UserID})
		h.unregister(c)
	}
}

type frame struct {
	Type string       `json:"type"`
	Data events.Event `json:"data"`
}

// visible lets front-desk roles see everything and guests only their own bookings.
func visible(actor domain.ActorContext, e events.Event) bool {
	if actor.Can(domain.PermBookingCheckIn) {
		return true
	}
	return e.UserID != 0 && e.UserID == actor.UserID
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
