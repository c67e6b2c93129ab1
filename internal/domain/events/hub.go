package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Type identifies a workflow event
type Type string

const (
	EventApproved       Type = "transaction_approved"
	EventRejected       Type = "transaction_rejected"
	EventPaid           Type = "transaction_paid"
	EventAdjusted       Type = "transaction_adjusted"
	EventSessionOpened  Type = "session_opened"
	EventSessionClosed  Type = "session_closed"
	EventSessionEmptied Type = "session_emptied"
)

const workflowChannel = "coinadmin:workflow_events"

// Event is pushed to connected admin UIs so they can refresh summary
// counters and triage lists without polling
type Event struct {
	Type          Type      `json:"type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	OperatorID    string    `json:"operator_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	At            time.Time `json:"at"`
}

// Connection is one admin UI WebSocket
type Connection struct {
	OperatorID uuid.UUID
	Conn       *websocket.Conn
	Send       chan []byte
}

// Hub fans workflow events out to local WebSocket connections and, when
// Redis is configured, across API instances via Pub/Sub
type Hub struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

type wireEvent struct {
	Event            Event  `json:"event"`
	SenderInstanceID string `json:"sender_instance_id"`
}

// NewHub creates a workflow event hub. redisClient may be nil for
// single-instance deployments.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, workflowChannel)
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Debug().Str("operator_id", conn.OperatorID.String()).Msg("operator connected to event feed")

		case conn := <-h.unregister:
			h.mu.Lock()
			if h.connections[conn] {
				delete(h.connections, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Debug().Str("operator_id", conn.OperatorID.String()).Msg("operator disconnected from event feed")
		}
	}
}

// Stop shuts the hub down
func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}

// Register attaches a connection to the hub
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister detaches a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Publish sends an event to every connected UI, here and on sibling
// instances
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.broadcastLocal(event)

	if h.redis == nil {
		return
	}

	payload, err := json.Marshal(wireEvent{Event: event, SenderInstanceID: h.instanceID})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode workflow event")
		return
	}
	if err := h.redis.Publish(h.ctx, workflowChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to publish workflow event to redis")
	}
}

func (h *Hub) broadcastLocal(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode workflow event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.connections {
		select {
		case conn.Send <- payload:
		default:
			// Slow consumer, drop rather than block the hub
			log.Warn().Str("operator_id", conn.OperatorID.String()).Msg("dropping workflow event for slow connection")
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				log.Warn().Err(err).Msg("malformed workflow event from redis")
				continue
			}
			if we.SenderInstanceID == h.instanceID {
				// Already broadcast locally on Publish
				continue
			}
			h.broadcastLocal(we.Event)
		}
	}
}

// ConnectionCount returns the number of attached UIs (for health/debug)
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
