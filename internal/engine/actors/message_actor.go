package actors

import (
	"log"
	"sort"
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

// Message types for MessageActor
type (
	SendMessageMsg struct {
		SenderID      uuid.UUID
		ReceiverID    uuid.UUID
		Body          string
		AttachmentRef string
	}

	// GetConversationMsg returns the full ordered history between the
	// requester and a peer, stamping delivered on fetched messages
	// addressed to the requester.
	GetConversationMsg struct {
		UserID uuid.UUID
		PeerID uuid.UUID
	}

	// MarkConversationReadMsg flips is_read on every unread message
	// from PeerID to ReaderID. Idempotent.
	MarkConversationReadMsg struct {
		ReaderID uuid.UUID
		PeerID   uuid.UUID
	}

	GetUnreadCountMsg struct {
		OwnerID uuid.UUID
		PeerID  uuid.UUID
	}

	GetLastMessageMsg struct {
		OwnerID uuid.UUID
		PeerID  uuid.UUID
	}

	// GetConversationSummariesMsg returns, per peer the owner has a
	// conversation with, the unread count and last message.
	GetConversationSummariesMsg struct {
		OwnerID uuid.UUID
	}

	// LoadMessagesMsg seeds the store from the durable log at boot.
	LoadMessagesMsg struct {
		Messages []*models.Message
	}
)

// ConversationSummary is the per-peer view backing the conversation
// list; the handler layers presence on top.
type ConversationSummary struct {
	PeerID      uuid.UUID       `json:"peerId"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *models.Message `json:"lastMessage"`
}

// MessageActor owns the append-only per-pair message log. Its mailbox
// serializes every mutation, which gives markRead its row-level
// atomicity without locks.
type MessageActor struct {
	conversations  map[string][]*models.Message // pair key -> ordered log
	seq            uint64
	users          *actor.PID
	notifications  *actor.PID
	metrics        *utils.MetricsCollector
	hub            *websocket.Hub
	db             *database.MongoDB
	requestTimeout time.Duration
}

func NewMessageActor(users, notifications *actor.PID, metrics *utils.MetricsCollector, hub *websocket.Hub, db *database.MongoDB) actor.Actor {
	return &MessageActor{
		conversations:  make(map[string][]*models.Message),
		users:          users,
		notifications:  notifications,
		metrics:        metrics,
		hub:            hub,
		db:             db,
		requestTimeout: 5 * time.Second,
	}
}

// snapshotMessage copies a log entry before it leaves the mailbox.
func snapshotMessage(m *models.Message) *models.Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func (a *MessageActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *SendMessageMsg:
		a.handleSend(context, msg)
	case *GetConversationMsg:
		a.handleGetConversation(context, msg)
	case *MarkConversationReadMsg:
		a.handleMarkRead(context, msg)
	case *GetUnreadCountMsg:
		context.Respond(a.unreadCount(msg.OwnerID, msg.PeerID))
	case *GetLastMessageMsg:
		a.handleLastMessage(context, msg)
	case *GetConversationSummariesMsg:
		a.handleSummaries(context, msg)
	case *LoadMessagesMsg:
		a.handleLoad(context, msg)
	}
}

// resolveUser fetches a user from the directory actor, returning nil
// when the user does not exist.
func (a *MessageActor) resolveUser(context actor.Context, id uuid.UUID) *models.User {
	future := context.RequestFuture(a.users, &GetUserProfileMsg{UserID: id}, a.requestTimeout)
	result, err := future.Result()
	if err != nil {
		return nil
	}
	user, ok := result.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func (a *MessageActor) handleSend(context actor.Context, msg *SendMessageMsg) {
	startTime := time.Now()

	if msg.Body == "" && msg.AttachmentRef == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "message body is required", nil))
		return
	}

	// The receiver must exist; the original never checked this.
	if a.resolveUser(context, msg.ReceiverID) == nil {
		context.Respond(utils.NewAppError(utils.ErrNotFound, "Invalid recipient: "+msg.ReceiverID.String(), nil))
		return
	}

	sender := a.resolveUser(context, msg.SenderID)
	if sender == nil {
		context.Respond(utils.NewUserNotFoundError(msg.SenderID.String()))
		return
	}

	a.seq++
	message := &models.Message{
		ID:            uuid.New(),
		SenderID:      msg.SenderID,
		ReceiverID:    msg.ReceiverID,
		Body:          msg.Body,
		AttachmentRef: msg.AttachmentRef,
		Delivered:     false,
		IsRead:        false,
		CreatedAt:     time.Now(),
		Seq:           a.seq,
	}

	key := models.PairKey(msg.SenderID, msg.ReceiverID)
	a.conversations[key] = append(a.conversations[key], message)

	if a.db != nil {
		if err := a.db.SaveMessage(stdctx.Background(), message); err != nil {
			log.Printf("Failed to save message %s: %v", message.ID, err)
		}
	}

	// Fan out: one notification to the receiver's inbox, one push event.
	if a.notifications != nil {
		context.Send(a.notifications, &PushNotificationMsg{
			RecipientID: msg.ReceiverID,
			Kind:        models.NotifyMessage,
			Content:     "New message from " + sender.Handle,
		})
	}
	if a.hub != nil {
		a.hub.PublishToUser(msg.ReceiverID, events.Marshal(events.TypeMessage, &events.MessageEvent{Message: message}))
	}

	a.metrics.AddOperationLatency("send_message", time.Since(startTime))
	context.Respond(snapshotMessage(message))
}

func (a *MessageActor) handleGetConversation(context actor.Context, msg *GetConversationMsg) {
	key := models.PairKey(msg.UserID, msg.PeerID)
	history := a.conversations[key]

	// A receiver fetching the history is the closest observable
	// analogue of delivery under pull-based sync.
	delivered := false
	for _, m := range history {
		if m.ReceiverID == msg.UserID && !m.Delivered {
			m.Delivered = true
			delivered = true
		}
	}
	if delivered && a.db != nil {
		if err := a.db.MarkConversationDelivered(stdctx.Background(), msg.UserID, msg.PeerID); err != nil {
			logPersistError("mark delivered", err)
		}
	}

	// Element-wise copies, not just a copied slice header: later
	// markRead calls flip is_read on the stored messages while the
	// handler goroutine is still encoding the response.
	out := make([]*models.Message, len(history))
	for i, m := range history {
		out[i] = snapshotMessage(m)
	}
	context.Respond(out)
}

func (a *MessageActor) handleMarkRead(context actor.Context, msg *MarkConversationReadMsg) {
	changed := false
	for _, m := range a.conversations[models.PairKey(msg.ReaderID, msg.PeerID)] {
		if m.SenderID == msg.PeerID && m.ReceiverID == msg.ReaderID && !m.IsRead {
			m.IsRead = true
			changed = true
		}
	}

	if changed {
		if a.db != nil {
			if err := a.db.MarkConversationRead(stdctx.Background(), msg.ReaderID, msg.PeerID); err != nil {
				logPersistError("mark read", err)
			}
		}
		if a.hub != nil {
			a.hub.PublishToUser(msg.PeerID, events.Marshal(events.TypeMessageRead, &events.MessageReadEvent{
				ReaderID: msg.ReaderID,
				PeerID:   msg.PeerID,
			}))
		}
	}
	context.Respond(changed)
}

func (a *MessageActor) unreadCount(ownerID, peerID uuid.UUID) int {
	count := 0
	for _, m := range a.conversations[models.PairKey(ownerID, peerID)] {
		if m.SenderID == peerID && m.ReceiverID == ownerID && !m.IsRead {
			count++
		}
	}
	return count
}

func (a *MessageActor) lastMessage(ownerID, peerID uuid.UUID) *models.Message {
	history := a.conversations[models.PairKey(ownerID, peerID)]
	if len(history) == 0 {
		return nil
	}
	return history[len(history)-1]
}

func (a *MessageActor) handleLastMessage(context actor.Context, msg *GetLastMessageMsg) {
	if last := a.lastMessage(msg.OwnerID, msg.PeerID); last != nil {
		context.Respond(snapshotMessage(last))
		return
	}
	context.Respond(utils.NewAppError(utils.ErrNotFound, "no messages for pair", nil))
}

func (a *MessageActor) handleSummaries(context actor.Context, msg *GetConversationSummariesMsg) {
	var summaries []*ConversationSummary
	for _, history := range a.conversations {
		if len(history) == 0 {
			continue
		}
		first := history[0]
		var peer uuid.UUID
		switch msg.OwnerID {
		case first.SenderID:
			peer = first.ReceiverID
		case first.ReceiverID:
			peer = first.SenderID
		default:
			continue
		}
		summaries = append(summaries, &ConversationSummary{
			PeerID:      peer,
			UnreadCount: a.unreadCount(msg.OwnerID, peer),
			LastMessage: snapshotMessage(a.lastMessage(msg.OwnerID, peer)),
		})
	}

	// Newest conversation first, matching the list the client renders.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	context.Respond(summaries)
}

func (a *MessageActor) handleLoad(context actor.Context, msg *LoadMessagesMsg) {
	for _, m := range msg.Messages {
		key := models.PairKey(m.SenderID, m.ReceiverID)
		a.conversations[key] = append(a.conversations[key], m)
		if m.Seq > a.seq {
			a.seq = m.Seq
		}
	}
	for key := range a.conversations {
		history := a.conversations[key]
		sort.Slice(history, func(i, j int) bool {
			if history[i].CreatedAt.Equal(history[j].CreatedAt) {
				return history[i].Seq < history[j].Seq
			}
			return history[i].CreatedAt.Before(history[j].CreatedAt)
		})
	}
	context.Respond(len(msg.Messages))
}

func logPersistError(op string, err error) {
	log.Printf("Failed to %s in store: %v", op, err)
}
