package actors

import (
	"encoding/json"
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

// Message types for CallActor
type (
	InitiateCallMsg struct {
		CallerID   uuid.UUID
		ReceiverID uuid.UUID
		Kind       models.CallKind
	}

	// AcceptCallMsg moves the pair's initiated call to ongoing. Only
	// the receiver may accept.
	AcceptCallMsg struct {
		UserID uuid.UUID
		PeerID uuid.UUID
	}

	// DeclineCallMsg ends an initiated call without it ever going
	// ongoing. Only the receiver may decline.
	DeclineCallMsg struct {
		UserID uuid.UUID
		PeerID uuid.UUID
	}

	// EndCallMsg ends the pair's active call; ending an initiated call
	// is a cancel, ending nothing is a no-op.
	EndCallMsg struct {
		UserID uuid.UUID
		PeerID uuid.UUID
	}

	GetActiveCallMsg struct {
		UserID uuid.UUID
		PeerID uuid.UUID
	}

	// RelaySignalMsg forwards an opaque offer/answer/candidate payload
	// to the other party of the pair's active call.
	RelaySignalMsg struct {
		FromID  uuid.UUID
		PeerID  uuid.UUID
		Payload json.RawMessage
	}

	// LoadCallsMsg seeds the active call slots from the durable store
	// so a restart keeps pairs busy instead of double-booking them.
	LoadCallsMsg struct {
		Calls []*models.Call
	}
)

// CallActor drives the per-pair call state machine. Its mailbox
// serializes initiate/end for all pairs, so two simultaneous initiate
// calls can never both succeed.
type CallActor struct {
	activeByPair   map[string]*models.Call
	calls          map[uuid.UUID]*models.Call
	users          *actor.PID
	notifications  *actor.PID
	metrics        *utils.MetricsCollector
	hub            *websocket.Hub
	db             *database.MongoDB
	requestTimeout time.Duration
}

func NewCallActor(users, notifications *actor.PID, metrics *utils.MetricsCollector, hub *websocket.Hub, db *database.MongoDB) actor.Actor {
	return &CallActor{
		activeByPair:   make(map[string]*models.Call),
		calls:          make(map[uuid.UUID]*models.Call),
		users:          users,
		notifications:  notifications,
		metrics:        metrics,
		hub:            hub,
		db:             db,
		requestTimeout: 5 * time.Second,
	}
}

func (a *CallActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *InitiateCallMsg:
		a.handleInitiate(context, msg)
	case *AcceptCallMsg:
		a.handleAccept(context, msg)
	case *DeclineCallMsg:
		a.handleDecline(context, msg)
	case *EndCallMsg:
		a.handleEnd(context, msg)
	case *GetActiveCallMsg:
		if call, exists := a.activeByPair[models.PairKey(msg.UserID, msg.PeerID)]; exists {
			context.Respond(snapshotCall(call))
		} else {
			context.Respond(utils.NewAppError(utils.ErrCallNotFound, "no active call for pair", nil))
		}
	case *RelaySignalMsg:
		a.handleSignal(context, msg)
	case *LoadCallsMsg:
		a.handleLoad(context, msg)
	}
}

// snapshotCall copies a call before it leaves the mailbox; responders
// must never hand out pointers into actor state.
func snapshotCall(call *models.Call) *models.Call {
	c := *call
	return &c
}

func (a *CallActor) handleInitiate(context actor.Context, msg *InitiateCallMsg) {
	startTime := time.Now()

	if msg.Kind != models.CallAudio && msg.Kind != models.CallVideo {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "call kind must be audio or video", nil))
		return
	}

	key := models.PairKey(msg.CallerID, msg.ReceiverID)
	if existing, exists := a.activeByPair[key]; exists {
		context.Respond(utils.NewCallInProgressError(existing.ID.String()))
		return
	}

	future := context.RequestFuture(a.users, &GetUserProfileMsg{UserID: msg.ReceiverID}, a.requestTimeout)
	result, err := future.Result()
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrActorTimeout, "user lookup timed out", err))
		return
	}
	if _, ok := result.(*models.User); !ok {
		context.Respond(utils.NewUserNotFoundError(msg.ReceiverID.String()))
		return
	}

	callerHandle := msg.CallerID.String()
	if callerResult, lookupErr := context.RequestFuture(a.users, &GetUserProfileMsg{UserID: msg.CallerID}, a.requestTimeout).Result(); lookupErr == nil {
		if caller, ok := callerResult.(*models.User); ok {
			callerHandle = caller.Handle
		}
	}

	call := &models.Call{
		ID:         uuid.New(),
		CallerID:   msg.CallerID,
		ReceiverID: msg.ReceiverID,
		Kind:       msg.Kind,
		Status:     models.CallInitiated,
		StartTime:  time.Now(),
	}

	a.activeByPair[key] = call
	a.calls[call.ID] = call
	a.persist(call)

	if a.notifications != nil {
		context.Send(a.notifications, &PushNotificationMsg{
			RecipientID: msg.ReceiverID,
			Kind:        models.NotifyCall,
			Content:     "Incoming " + string(msg.Kind) + " call from " + callerHandle,
		})
	}
	a.publish(msg.ReceiverID, events.TypeCallIncoming, call)

	a.metrics.AddOperationLatency("initiate_call", time.Since(startTime))
	context.Respond(snapshotCall(call))
}

func (a *CallActor) handleAccept(context actor.Context, msg *AcceptCallMsg) {
	call, exists := a.activeByPair[models.PairKey(msg.UserID, msg.PeerID)]
	if !exists {
		context.Respond(utils.NewAppError(utils.ErrCallNotFound, "no active call for pair", nil))
		return
	}
	if call.ReceiverID != msg.UserID {
		context.Respond(utils.NewUnauthorizedError("only the receiver may accept a call"))
		return
	}
	if call.Status != models.CallInitiated {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "call is not awaiting accept", nil))
		return
	}

	call.Status = models.CallOngoing
	a.persist(call)
	a.publish(call.CallerID, events.TypeCallAccepted, call)
	context.Respond(snapshotCall(call))
}

func (a *CallActor) handleDecline(context actor.Context, msg *DeclineCallMsg) {
	call, exists := a.activeByPair[models.PairKey(msg.UserID, msg.PeerID)]
	if !exists {
		context.Respond(utils.NewAppError(utils.ErrCallNotFound, "no active call for pair", nil))
		return
	}
	if call.ReceiverID != msg.UserID {
		context.Respond(utils.NewUnauthorizedError("only the receiver may decline a call"))
		return
	}
	if call.Status != models.CallInitiated {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "call is not awaiting accept", nil))
		return
	}

	a.finish(call)
	a.publish(call.CallerID, events.TypeCallDeclined, call)
	context.Respond(snapshotCall(call))
}

func (a *CallActor) handleEnd(context actor.Context, msg *EndCallMsg) {
	call, exists := a.activeByPair[models.PairKey(msg.UserID, msg.PeerID)]
	if !exists {
		// Ending an already-ended call is a no-op, not an error;
		// either party may race the other here.
		context.Respond(true)
		return
	}

	a.finish(call)
	other := call.CallerID
	if msg.UserID == call.CallerID {
		other = call.ReceiverID
	}
	a.publish(other, events.TypeCallEnded, call)
	context.Respond(snapshotCall(call))
}

func (a *CallActor) handleSignal(context actor.Context, msg *RelaySignalMsg) {
	call, exists := a.activeByPair[models.PairKey(msg.FromID, msg.PeerID)]
	if !exists {
		context.Respond(utils.NewAppError(utils.ErrCallNotFound, "no active call for pair", nil))
		return
	}
	if msg.FromID != call.CallerID && msg.FromID != call.ReceiverID {
		context.Respond(utils.NewUnauthorizedError("not a party of this call"))
		return
	}

	if a.hub != nil {
		a.hub.PublishToUser(msg.PeerID, events.Marshal(events.TypeCallSignal, &events.SignalEvent{
			CallID:  call.ID,
			FromID:  msg.FromID,
			Payload: msg.Payload,
		}))
	}
	context.Respond(true)
}

func (a *CallActor) handleLoad(context actor.Context, msg *LoadCallsMsg) {
	for _, call := range msg.Calls {
		if !call.Active() {
			continue
		}
		a.activeByPair[models.PairKey(call.CallerID, call.ReceiverID)] = call
		a.calls[call.ID] = call
	}
	context.Respond(true)
}

// finish stamps end_time exactly once and releases the pair slot.
func (a *CallActor) finish(call *models.Call) {
	now := time.Now()
	call.Status = models.CallEnded
	if call.EndTime == nil {
		call.EndTime = &now
	}
	delete(a.activeByPair, models.PairKey(call.CallerID, call.ReceiverID))
	a.persist(call)
}

func (a *CallActor) persist(call *models.Call) {
	if a.db == nil {
		return
	}
	if err := a.db.SaveCall(stdctx.Background(), call); err != nil {
		log.Printf("Failed to save call %s: %v", call.ID, err)
	}
}

func (a *CallActor) publish(targetID uuid.UUID, eventType string, call *models.Call) {
	if a.hub == nil {
		return
	}
	a.hub.PublishToUser(targetID, events.Marshal(eventType, &events.CallEvent{Call: call}))
}
