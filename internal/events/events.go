// Package events defines the domain event payloads pushed over the
// websocket channel. Every store mutation emits one of these, so push
// delivery and the polling baseline share the same source of truth.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pondside/internal/models"
)

const (
	TypeMessage      = "message"
	TypeMessageRead  = "message_read"
	TypePresence     = "presence"
	TypeCallIncoming = "call_incoming"
	TypeCallAccepted = "call_accepted"
	TypeCallDeclined = "call_declined"
	TypeCallEnded    = "call_ended"
	TypeCallSignal   = "call_signal"
	TypeNotification = "notification"
)

// Envelope wraps every pushed event with its type tag.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type MessageEvent struct {
	Message *models.Message `json:"message"`
}

type MessageReadEvent struct {
	ReaderID uuid.UUID `json:"readerId"`
	PeerID   uuid.UUID `json:"peerId"`
}

type PresenceEvent struct {
	UserID   uuid.UUID         `json:"userId"`
	Status   models.UserStatus `json:"status"`
	LastSeen time.Time         `json:"lastSeen"`
}

type CallEvent struct {
	Call *models.Call `json:"call"`
}

// SignalEvent carries an opaque offer/answer/candidate payload between
// the two parties of an active call. The server never inspects it.
type SignalEvent struct {
	CallID  uuid.UUID       `json:"callId"`
	FromID  uuid.UUID       `json:"fromId"`
	Payload json.RawMessage `json:"payload"`
}

type NotificationEvent struct {
	Notification *models.Notification `json:"notification"`
}

// Marshal encodes a typed payload into an Envelope ready for the hub.
// A payload that fails to encode is a programming error; the returned
// nil payload is simply dropped by the caller.
func Marshal(eventType string, payload interface{}) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return nil
	}
	return data
}
