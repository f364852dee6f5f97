// Package engine wires one actor per store concern and hands their
// PIDs to the HTTP layer. Every state-changing core operation is a
// request against exactly one of these actors.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"pondside/internal/database"
	"pondside/internal/engine/actors"
	"pondside/internal/utils"
	"pondside/internal/websocket"
)

type Engine struct {
	userActor         *actor.PID
	messageActor      *actor.PID
	callActor         *actor.PID
	notificationActor *actor.PID
}

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, hub *websocket.Hub, db *database.MongoDB) *Engine {
	root := system.Root

	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(metrics, hub, db)
	})
	userPID := root.Spawn(userProps)

	notificationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewNotificationActor(metrics, hub, db)
	})
	notificationPID := root.Spawn(notificationProps)

	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(userPID, notificationPID, metrics, hub, db)
	})
	messagePID := root.Spawn(messageProps)

	callProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCallActor(userPID, notificationPID, metrics, hub, db)
	})
	callPID := root.Spawn(callProps)

	e := &Engine{
		userActor:         userPID,
		messageActor:      messagePID,
		callActor:         callPID,
		notificationActor: notificationPID,
	}

	if db != nil {
		e.loadFromStore(root, db)
	}

	return e
}

// loadFromStore seeds every actor from the durable store so a restart
// keeps registered users addressable, conversations and unread counts
// intact, and active call pairs busy.
func (e *Engine) loadFromStore(root *actor.RootContext, db *database.MongoDB) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, err := db.GetAllUsers(ctx)
	if err != nil {
		log.Printf("Failed to load users from store: %v", err)
		return
	}
	if len(users) > 0 {
		e.seed(root, e.userActor, &actors.LoadUsersMsg{Users: users}, "user directory")
	}

	messages, err := db.GetAllMessages(ctx)
	if err != nil {
		log.Printf("Failed to load messages from store: %v", err)
	} else if len(messages) > 0 {
		e.seed(root, e.messageActor, &actors.LoadMessagesMsg{Messages: messages}, "message store")
	}

	calls, err := db.GetActiveCalls(ctx)
	if err != nil {
		log.Printf("Failed to load active calls from store: %v", err)
	} else if len(calls) > 0 {
		e.seed(root, e.callActor, &actors.LoadCallsMsg{Calls: calls}, "call sessions")
	}

	notifications, err := db.GetUnreadNotifications(ctx)
	if err != nil {
		log.Printf("Failed to load notifications from store: %v", err)
	} else if len(notifications) > 0 {
		e.seed(root, e.notificationActor, &actors.LoadNotificationsMsg{Notifications: notifications}, "notification inboxes")
	}
}

func (e *Engine) seed(root *actor.RootContext, pid *actor.PID, msg interface{}, what string) {
	future := root.RequestFuture(pid, msg, 10*time.Second)
	if _, err := future.Result(); err != nil {
		log.Printf("Failed to seed %s: %v", what, err)
	}
}

// StartPresenceSweeper runs the TTL-based liveness sweep until ctx is
// cancelled. Users whose heartbeat went stale are flipped offline.
func (e *Engine) StartPresenceSweeper(ctx context.Context, root *actor.RootContext, ttl time.Duration) {
	interval := ttl / 3
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				root.Send(e.userActor, &actors.SweepIdleMsg{TTL: ttl})
			}
		}
	}()
}

// GetUserActor returns the PID of the user directory actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}

// GetMessageActor returns the PID of the message store actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}

// GetCallActor returns the PID of the call session actor
func (e *Engine) GetCallActor() *actor.PID {
	return e.callActor
}

// GetNotificationActor returns the PID of the notification actor
func (e *Engine) GetNotificationActor() *actor.PID {
	return e.notificationActor
}
