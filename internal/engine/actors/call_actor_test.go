package actors

import (
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pondside/internal/models"
	"pondside/internal/utils"
)

type callFixture struct {
	system *actor.ActorSystem
	pid    *actor.PID
	caller *models.User
	callee *models.User
}

func newCallFixture(t *testing.T) *callFixture {
	t.Helper()
	system := actor.NewActorSystem()
	users := spawnUserActor(t, system)

	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCallActor(users, nil, utils.NewMetricsCollector(), nil, nil)
	}))

	return &callFixture{
		system: system,
		pid:    pid,
		caller: registerUser(t, system, users, "alice", "alice@pond.io"),
		callee: registerUser(t, system, users, "bob", "bob@pond.io"),
	}
}

func (f *callFixture) initiate(t *testing.T, from, to uuid.UUID, kind models.CallKind) interface{} {
	t.Helper()
	result, err := f.system.Root.RequestFuture(f.pid, &InitiateCallMsg{
		CallerID:   from,
		ReceiverID: to,
		Kind:       kind,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	return result
}

func TestInitiateCall(t *testing.T) {
	f := newCallFixture(t)

	result := f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)
	call, ok := result.(*models.Call)
	require.True(t, ok, "unexpected initiate reply: %#v", result)

	assert.Equal(t, models.CallInitiated, call.Status)
	assert.Equal(t, models.CallAudio, call.Kind)
	assert.True(t, call.Active())
	assert.Nil(t, call.EndTime)
}

func TestInitiateCallValidation(t *testing.T) {
	f := newCallFixture(t)

	result := f.initiate(t, f.caller.ID, f.callee.ID, models.CallKind("hologram"))
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)

	result = f.initiate(t, f.caller.ID, uuid.New(), models.CallVideo)
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUserNotFound, appErr.Code)
}

func TestSecondInitiateConflicts(t *testing.T) {
	f := newCallFixture(t)

	first := f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)
	require.IsType(t, &models.Call{}, first)

	// Same direction
	result := f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCallInProgress, appErr.Code)

	// Opposite direction hits the same pair slot.
	result = f.initiate(t, f.callee.ID, f.caller.ID, models.CallVideo)
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCallInProgress, appErr.Code)
}

func TestAcceptCall(t *testing.T) {
	f := newCallFixture(t)
	f.initiate(t, f.caller.ID, f.callee.ID, models.CallVideo)

	// The caller cannot accept their own call.
	result, err := f.system.Root.RequestFuture(f.pid, &AcceptCallMsg{
		UserID: f.caller.ID,
		PeerID: f.callee.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrUnauthorized, appErr.Code)

	result, err = f.system.Root.RequestFuture(f.pid, &AcceptCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	call, ok := result.(*models.Call)
	require.True(t, ok)
	assert.Equal(t, models.CallOngoing, call.Status)

	// Accepting an ongoing call is not a valid transition.
	result, err = f.system.Root.RequestFuture(f.pid, &AcceptCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestDeclineCallFreesThePair(t *testing.T) {
	f := newCallFixture(t)
	f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)

	result, err := f.system.Root.RequestFuture(f.pid, &DeclineCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	call, ok := result.(*models.Call)
	require.True(t, ok)
	assert.Equal(t, models.CallEnded, call.Status)
	require.NotNil(t, call.EndTime)

	// The pair is free again.
	result = f.initiate(t, f.caller.ID, f.callee.ID, models.CallVideo)
	require.IsType(t, &models.Call{}, result)
}

func TestEndCallIsIdempotent(t *testing.T) {
	f := newCallFixture(t)
	f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)

	end := func(userID uuid.UUID) interface{} {
		result, err := f.system.Root.RequestFuture(f.pid, &EndCallMsg{
			UserID: userID,
			PeerID: f.caller.ID,
		}, 5*time.Second).Result()
		require.NoError(t, err)
		return result
	}

	result, err := f.system.Root.RequestFuture(f.pid, &EndCallMsg{
		UserID: f.caller.ID,
		PeerID: f.callee.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	call, ok := result.(*models.Call)
	require.True(t, ok)
	assert.Equal(t, models.CallEnded, call.Status)
	require.NotNil(t, call.EndTime)
	endTime := *call.EndTime

	// The other party racing the hangup sees a quiet success, and the
	// end timestamp never moves.
	assert.Equal(t, true, end(f.callee.ID))
	assert.Equal(t, endTime, *call.EndTime)
}

func TestSignalRequiresActiveCall(t *testing.T) {
	f := newCallFixture(t)

	result, err := f.system.Root.RequestFuture(f.pid, &RelaySignalMsg{
		FromID:  f.caller.ID,
		PeerID:  f.callee.ID,
		Payload: []byte(`{"sdp":"offer"}`),
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCallNotFound, appErr.Code)

	f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)

	result, err = f.system.Root.RequestFuture(f.pid, &RelaySignalMsg{
		FromID:  f.caller.ID,
		PeerID:  f.callee.ID,
		Payload: []byte(`{"sdp":"offer"}`),
	}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestGetActiveCall(t *testing.T) {
	f := newCallFixture(t)

	result, err := f.system.Root.RequestFuture(f.pid, &GetActiveCallMsg{
		UserID: f.caller.ID,
		PeerID: f.callee.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCallNotFound, appErr.Code)

	initiated := f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)

	result, err = f.system.Root.RequestFuture(f.pid, &GetActiveCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, initiated, result)
}

func TestLoadCallsRestoresActivePairs(t *testing.T) {
	f := newCallFixture(t)

	ended := time.Now().Add(-time.Minute)
	carried := &models.Call{
		ID:         uuid.New(),
		CallerID:   f.caller.ID,
		ReceiverID: f.callee.ID,
		Kind:       models.CallVideo,
		Status:     models.CallOngoing,
		StartTime:  time.Now().Add(-time.Hour),
	}
	stale := &models.Call{
		ID:         uuid.New(),
		CallerID:   f.caller.ID,
		ReceiverID: f.callee.ID,
		Kind:       models.CallAudio,
		Status:     models.CallEnded,
		StartTime:  time.Now().Add(-2 * time.Hour),
		EndTime:    &ended,
	}

	_, err := f.system.Root.RequestFuture(f.pid, &LoadCallsMsg{
		Calls: []*models.Call{carried, stale},
	}, 5*time.Second).Result()
	require.NoError(t, err)

	// The ongoing call keeps the pair busy across the reload.
	result := f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "unexpected initiate reply: %#v", result)
	assert.Equal(t, utils.ErrCallInProgress, appErr.Code)

	result, err = f.system.Root.RequestFuture(f.pid, &GetActiveCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	active, ok := result.(*models.Call)
	require.True(t, ok)
	assert.Equal(t, carried.ID, active.ID)

	// Ending the carried call frees the pair again.
	_, err = f.system.Root.RequestFuture(f.pid, &EndCallMsg{
		UserID: f.callee.ID,
		PeerID: f.caller.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)

	result = f.initiate(t, f.caller.ID, f.callee.ID, models.CallAudio)
	fresh, ok := result.(*models.Call)
	require.True(t, ok, "unexpected initiate reply: %#v", result)
	assert.Equal(t, models.CallInitiated, fresh.Status)
}
