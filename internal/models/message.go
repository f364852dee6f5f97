package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID            uuid.UUID `json:"id" db:"id"`
	SenderID      uuid.UUID `json:"senderId" db:"sender_id"`
	ReceiverID    uuid.UUID `json:"receiverId" db:"receiver_id"`
	Body          string    `json:"body" db:"body"`
	AttachmentRef string    `json:"attachmentRef,omitempty" db:"attachment_ref"`
	Delivered     bool      `json:"delivered" db:"delivered"`
	IsRead        bool      `json:"isRead" db:"is_read"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`

	// Seq is a store-assigned monotonic counter breaking CreatedAt ties.
	Seq uint64 `json:"-" db:"seq"`
}
