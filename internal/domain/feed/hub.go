// Package feed streams committed ledger transactions to connected regulator
// dashboards over WebSocket. With Redis configured, events fan out across
// instances through Pub/Sub; without it the hub runs single-instance.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/domain/ledger"
)

const eventsChannel = "ledger:events"

// Event is a feed message.
type Event struct {
	Type        string             `json:"type"`
	Transaction ledger.Transaction `json:"transaction"`
}

type envelope struct {
	Event
	SenderInstanceID string `json:"sender_instance_id"`
}

// Connection is one subscribed WebSocket client.
type Connection struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub fans ledger events out to local connections and, when Redis is
// configured, to every other instance.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte

	ctx        context.Context
	cancel     context.CancelFunc
	instanceID string
}

// NewHub creates a feed hub. redisClient may be nil.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan []byte, 64),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, eventsChannel)
	}
	return h
}

// Run starts the hub loops. Call in a goroutine.
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.connections[conn] {
				delete(h.connections, conn)
				close(conn.Send)
			}
			h.mu.Unlock()

		case payload := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.connections {
				select {
				case conn.Send <- payload:
				default:
					// Slow consumer; drop the event rather than block the hub.
				}
			}
			h.mu.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Shutdown stops the hub and closes every connection.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		close(conn.Send)
		conn.Conn.Close()
		delete(h.connections, conn)
	}
}

// PublishTransaction pushes a committed transaction to all subscribers.
// Non-blocking; implements the marketplace engine's Publisher.
func (h *Hub) PublishTransaction(t ledger.Transaction) {
	env := envelope{
		Event:            Event{Type: "transaction", Transaction: t},
		SenderInstanceID: h.instanceID,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed event")
		return
	}

	h.enqueue(payload)

	if h.redis != nil {
		if err := h.redis.Publish(h.ctx, eventsChannel, payload).Err(); err != nil {
			log.Error().Err(err).Msg("failed to publish feed event to redis")
		}
	}
}

func (h *Hub) enqueue(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("dropping malformed feed event")
				continue
			}
			// Local broadcast already happened on the publishing instance.
			if env.SenderInstanceID == h.instanceID {
				continue
			}
			h.enqueue([]byte(msg.Payload))

		case <-h.ctx.Done():
			return
		}
	}
}
