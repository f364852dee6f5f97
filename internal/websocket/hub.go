package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageToSend defines the structure for sending an event to a specific user.
type MessageToSend struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of active clients and fans domain events out
// to them. It is the push complement of the polling baseline: both
// observe the same actor state.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	Clients map[uuid.UUID]map[*Client]bool

	// Events destined for every connected user (presence changes).
	Broadcast chan []byte

	// Events destined for one user (messages, calls, notifications).
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 64),
		SendDirect: make(chan *MessageToSend, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Clients:    make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	log.Println("WebSocket hub started")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.UserID]; !ok {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if userClients, ok := h.Clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.Clients, client.UserID)
					}
				}
			}
			h.mu.Unlock()

		case payload := <-h.Broadcast:
			h.mu.RLock()
			for _, userClients := range h.Clients {
				for client := range userClients {
					select {
					case client.Send <- payload:
					default:
						log.Printf("Broadcast send buffer full for client of user %s", client.UserID)
					}
				}
			}
			h.mu.RUnlock()

		case direct := <-h.SendDirect:
			h.mu.RLock()
			if userClients, ok := h.Clients[direct.TargetUserID]; ok {
				for client := range userClients {
					select {
					case client.Send <- direct.Payload:
					default:
						log.Printf("Send channel full for client of user %s, event dropped", client.UserID)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishToUser queues an event for every connection of one user. Used
// by the actors on each store mutation; a nil payload or a busy hub
// drops the event, which the next poll cycle repairs.
func (h *Hub) PublishToUser(targetUserID uuid.UUID, payload []byte) {
	if payload == nil {
		return
	}
	message := &MessageToSend{
		TargetUserID: targetUserID,
		Payload:      payload,
	}
	select {
	case h.SendDirect <- message:
	case <-time.After(time.Second):
		log.Printf("Timeout queuing event for user %s, hub busy", targetUserID)
	}
}

// PublishAll queues an event for every connected user.
func (h *Hub) PublishAll(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case h.Broadcast <- payload:
	case <-time.After(time.Second):
		log.Println("Timeout queuing broadcast event, hub busy")
	}
}
