package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind tags what produced the notification.
type NotificationKind string

const (
	NotifyMessage NotificationKind = "message"
	NotifyCall    NotificationKind = "call"
)

type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	RecipientID uuid.UUID        `json:"recipientId" db:"recipient_id"`
	Kind        NotificationKind `json:"kind" db:"kind"`
	Content     string           `json:"content" db:"content"`
	IsRead      bool             `json:"isRead" db:"is_read"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
}
