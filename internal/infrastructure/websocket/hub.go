package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster interface for broadcasting events to WebSocket clients.
type Broadcaster interface {
	Broadcast(userID, workflowID, jobID string, event *WSEvent)
}

// broadcastMsg represents a message to be broadcast to clients
type broadcastMsg struct {
	userID     string
	workflowID string
	jobID      string
	event      *WSEvent
}

// Hub manages WebSocket connections and broadcasting events to clients.
// It implements the Broadcaster interface.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for broadcasting events
	broadcast chan *broadcastMsg

	// Subscription indexes for fast lookup
	byUserID     map[string]map[*Client]bool
	byWorkflowID map[string]map[*Client]bool
	byJobID      map[string]map[*Client]bool

	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *broadcastMsg, 256),
		byUserID:     make(map[string]map[*Client]bool),
		byWorkflowID: make(map[string]map[*Client]bool),
		byJobID:      make(map[string]map[*Client]bool),
		logger:       logger,
	}
}

// Run starts the hub's main event loop.
// This should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

// Broadcast queues an event for delivery to subscribed clients.
func (h *Hub) Broadcast(userID, workflowID, jobID string, event *WSEvent) {
	select {
	case h.broadcast <- &broadcastMsg{userID: userID, workflowID: workflowID, jobID: jobID, event: event}:
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("broadcast queue full, dropping event")
	}
}

// Subscribe adds workflow/job subscriptions for a client.
func (h *Hub) Subscribe(client *Client, workflowID, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if workflowID != "" {
		client.subs.add(client.subs.workflows, workflowID)
		if h.byWorkflowID[workflowID] == nil {
			h.byWorkflowID[workflowID] = make(map[*Client]bool)
		}
		h.byWorkflowID[workflowID][client] = true
	}
	if jobID != "" {
		client.subs.add(client.subs.jobs, jobID)
		if h.byJobID[jobID] == nil {
			h.byJobID[jobID] = make(map[*Client]bool)
		}
		h.byJobID[jobID][client] = true
	}
}

// Unsubscribe removes workflow/job subscriptions for a client.
func (h *Hub) Unsubscribe(client *Client, workflowID, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if workflowID != "" {
		client.subs.remove(client.subs.workflows, workflowID)
		if set := h.byWorkflowID[workflowID]; set != nil {
			delete(set, client)
			if len(set) == 0 {
				delete(h.byWorkflowID, workflowID)
			}
		}
	}
	if jobID != "" {
		client.subs.remove(client.subs.jobs, jobID)
		if set := h.byJobID[jobID]; set != nil {
			delete(set, client)
			if len(set) == 0 {
				delete(h.byJobID, jobID)
			}
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	// Index by user ID
	if client.userID != "" {
		if h.byUserID[client.userID] == nil {
			h.byUserID[client.userID] = make(map[*Client]bool)
		}
		h.byUserID[client.userID][client] = true
	}

	h.logger.Debug().Str("client_id", client.id).Str("user_id", client.userID).
		Int("total_clients", len(h.clients)).Msg("client registered")
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	if client.userID != "" {
		if set := h.byUserID[client.userID]; set != nil {
			delete(set, client)
			if len(set) == 0 {
				delete(h.byUserID, client.userID)
			}
		}
	}
	for workflowID, set := range h.byWorkflowID {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byWorkflowID, workflowID)
		}
	}
	for jobID, set := range h.byJobID {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byJobID, jobID)
		}
	}

	h.logger.Debug().Str("client_id", client.id).
		Int("total_clients", len(h.clients)).Msg("client unregistered")
}

// broadcastEvent delivers one event to every client subscribed to the event's
// user, workflow, or job. A client with a full send buffer misses the event.
func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := make(map[*Client]bool)
	deliver := func(set map[*Client]bool) {
		for client := range set {
			if delivered[client] {
				continue
			}
			delivered[client] = true
			select {
			case client.send <- msg.event:
			default:
				h.logger.Warn().Str("client_id", client.id).Msg("client send buffer full, dropping event")
			}
		}
	}

	if msg.userID != "" {
		deliver(h.byUserID[msg.userID])
	}
	if msg.workflowID != "" {
		deliver(h.byWorkflowID[msg.workflowID])
	}
	if msg.jobID != "" {
		deliver(h.byJobID[msg.jobID])
	}
}
