// Package sse provides Server-Sent Events support for live owner notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"listing_leads_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventNotification EventType = "notification"
	EventLeadCaptured EventType = "lead_captured"
	EventLeadUpdated  EventType = "lead_updated"
	EventLeadRescored EventType = "lead_rescored"
	EventLeadClosed   EventType = "lead_closed"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// Event represents an SSE event payload
type Event struct {
	Type    EventType `json:"type"`
	LeadID  uuid.UUID `json:"leadId,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

type client struct {
	ownerID uuid.UUID
	events  chan Event
}

// Service fans events out to every open stream of an owner.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client
	closed  bool
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.clients[c.ownerID] = append(s.clients[c.ownerID], c)
	return true
}

// removeClient unregisters a client and closes its channel. Safe after Close.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.ownerID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.ownerID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.ownerID]) == 0 {
		delete(s.clients, c.ownerID)
	}
}

// Publish sends an event to every stream of one owner. Slow clients drop events.
func (s *Service) Publish(ownerID uuid.UUID, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := s.clients[ownerID]
	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, dropping event", "owner_id", ownerID, "type", event.Type)
		}
	}

	if len(clients) > 0 {
		s.log.Debug("sse event published", "owner_id", ownerID, "type", event.Type, "clients", len(clients))
	}
}

// ClientCount reports how many streams an owner has open.
func (s *Service) ClientCount(ownerID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[ownerID])
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getOwnerID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := getOwnerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		cl := &client{ownerID: ownerID, events: make(chan Event, clientBuffer)}
		if !s.addClient(cl) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		}
		defer s.removeClient(cl)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"ownerId": ownerID})
		c.Writer.Flush()

		s.log.Debug("sse client connected", "owner_id", ownerID)

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "owner_id", ownerID)
				return
			case <-heartbeat.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and rejects new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
