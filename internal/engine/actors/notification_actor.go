package actors

import (
	"log"
	"time"

	stdctx "context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"

	"pondside/internal/database"
	"pondside/internal/events"
	"pondside/internal/models"
	"pondside/internal/utils"
	"pondside/internal/websocket"
)

// maxBacklog bounds the per-user notification backlog; the oldest
// entries are trimmed on push.
const maxBacklog = 500

// Message types for NotificationActor
type (
	PushNotificationMsg struct {
		RecipientID uuid.UUID
		Kind        models.NotificationKind
		Content     string
	}

	GetUnreadNotificationsMsg struct {
		RecipientID uuid.UUID
	}

	MarkNotificationsReadMsg struct {
		RecipientID uuid.UUID
	}

	// LoadNotificationsMsg seeds the inboxes from the durable store at
	// startup. Notifications arrive oldest-first across all recipients.
	LoadNotificationsMsg struct {
		Notifications []*models.Notification
	}
)

// NotificationActor owns the per-user notification inboxes. Append-only
// apart from the read flag and the backlog trim; retrieval is entirely
// demand-driven.
type NotificationActor struct {
	inboxes map[uuid.UUID][]*models.Notification
	metrics *utils.MetricsCollector
	hub     *websocket.Hub
	db      *database.MongoDB
}

func NewNotificationActor(metrics *utils.MetricsCollector, hub *websocket.Hub, db *database.MongoDB) actor.Actor {
	return &NotificationActor{
		inboxes: make(map[uuid.UUID][]*models.Notification),
		metrics: metrics,
		hub:     hub,
		db:      db,
	}
}

func (a *NotificationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *PushNotificationMsg:
		a.handlePush(context, msg)
	case *GetUnreadNotificationsMsg:
		a.handleGetUnread(context, msg)
	case *MarkNotificationsReadMsg:
		a.handleMarkRead(context, msg)
	case *LoadNotificationsMsg:
		a.handleLoad(context, msg)
	}
}

func (a *NotificationActor) handlePush(context actor.Context, msg *PushNotificationMsg) {
	startTime := time.Now()

	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: msg.RecipientID,
		Kind:        msg.Kind,
		Content:     msg.Content,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}

	inbox := append(a.inboxes[msg.RecipientID], n)
	if len(inbox) > maxBacklog {
		inbox = inbox[len(inbox)-maxBacklog:]
	}
	a.inboxes[msg.RecipientID] = inbox

	if a.db != nil {
		ctx := stdctx.Background()
		if err := a.db.SaveNotification(ctx, n); err != nil {
			log.Printf("Failed to save notification %s: %v", n.ID, err)
		}
		if err := a.db.TrimNotifications(ctx, msg.RecipientID, maxBacklog); err != nil {
			log.Printf("Failed to trim notifications for %s: %v", msg.RecipientID, err)
		}
	}

	if a.hub != nil {
		a.hub.PublishToUser(msg.RecipientID, events.Marshal(events.TypeNotification, &events.NotificationEvent{Notification: n}))
	}

	a.metrics.AddOperationLatency("push_notification", time.Since(startTime))
	if context.Sender() != nil {
		snapshot := *n
		context.Respond(&snapshot)
	}
}

// handleGetUnread responds with copies so callers can encode them
// while later pushes and read flips mutate the inbox.
func (a *NotificationActor) handleGetUnread(context actor.Context, msg *GetUnreadNotificationsMsg) {
	unread := []*models.Notification{}
	for _, n := range a.inboxes[msg.RecipientID] {
		if !n.IsRead {
			snapshot := *n
			unread = append(unread, &snapshot)
		}
	}
	context.Respond(unread)
}

func (a *NotificationActor) handleMarkRead(context actor.Context, msg *MarkNotificationsReadMsg) {
	changed := false
	for _, n := range a.inboxes[msg.RecipientID] {
		if !n.IsRead {
			n.IsRead = true
			changed = true
		}
	}

	if changed && a.db != nil {
		if err := a.db.MarkNotificationsRead(stdctx.Background(), msg.RecipientID); err != nil {
			log.Printf("Failed to mark notifications read for %s: %v", msg.RecipientID, err)
		}
	}
	context.Respond(changed)
}

func (a *NotificationActor) handleLoad(context actor.Context, msg *LoadNotificationsMsg) {
	for _, n := range msg.Notifications {
		inbox := append(a.inboxes[n.RecipientID], n)
		if len(inbox) > maxBacklog {
			inbox = inbox[len(inbox)-maxBacklog:]
		}
		a.inboxes[n.RecipientID] = inbox
	}
	context.Respond(true)
}
