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

// messageFixture wires a message actor to a real directory actor with
// two registered users, no persistence.
type messageFixture struct {
	system *actor.ActorSystem
	users  *actor.PID
	pid    *actor.PID
	alice  *models.User
	bob    *models.User
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	system := actor.NewActorSystem()
	users := spawnUserActor(t, system)

	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(users, nil, utils.NewMetricsCollector(), nil, nil)
	}))

	return &messageFixture{
		system: system,
		users:  users,
		pid:    pid,
		alice:  registerUser(t, system, users, "alice", "alice@pond.io"),
		bob:    registerUser(t, system, users, "bob", "bob@pond.io"),
	}
}

func (f *messageFixture) send(t *testing.T, from, to uuid.UUID, body string) *models.Message {
	t.Helper()
	result, err := f.system.Root.RequestFuture(f.pid, &SendMessageMsg{
		SenderID:   from,
		ReceiverID: to,
		Body:       body,
	}, 5*time.Second).Result()
	require.NoError(t, err)

	message, ok := result.(*models.Message)
	require.True(t, ok, "unexpected send reply: %#v", result)
	return message
}

func (f *messageFixture) history(t *testing.T, owner, peer uuid.UUID) []*models.Message {
	t.Helper()
	result, err := f.system.Root.RequestFuture(f.pid, &GetConversationMsg{
		UserID: owner,
		PeerID: peer,
	}, 5*time.Second).Result()
	require.NoError(t, err)

	history, ok := result.([]*models.Message)
	require.True(t, ok)
	return history
}

func TestSendAndFetchConversation(t *testing.T) {
	f := newMessageFixture(t)

	sent := f.send(t, f.alice.ID, f.bob.ID, "hey bob, you around?")
	assert.False(t, sent.Delivered)
	assert.False(t, sent.IsRead)

	// The receiver fetching the history stamps delivered; the body
	// comes back byte for byte.
	history := f.history(t, f.bob.ID, f.alice.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "hey bob, you around?", history[0].Body)
	assert.True(t, history[0].Delivered)
	assert.False(t, history[0].IsRead)

	// The sender fetching their own outgoing message does not.
	f.send(t, f.bob.ID, f.alice.ID, "yep")
	history = f.history(t, f.bob.ID, f.alice.ID)
	require.Len(t, history, 2)
	assert.True(t, history[0].Delivered)
	assert.False(t, history[1].Delivered)
}

func TestConversationOrdering(t *testing.T) {
	f := newMessageFixture(t)

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.bob.ID, f.alice.ID, "two")
	f.send(t, f.alice.ID, f.bob.ID, "three")

	history := f.history(t, f.alice.ID, f.bob.ID)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Body)
	assert.Equal(t, "two", history[1].Body)
	assert.Equal(t, "three", history[2].Body)

	// Both parties see the same interleaving.
	bobView := f.history(t, f.bob.ID, f.alice.ID)
	require.Len(t, bobView, 3)
	for i := range history {
		assert.Equal(t, history[i].ID, bobView[i].ID)
	}
}

func TestSendValidation(t *testing.T) {
	f := newMessageFixture(t)

	// Empty body
	result, err := f.system.Root.RequestFuture(f.pid, &SendMessageMsg{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)

	// Unknown receiver
	result, err = f.system.Root.RequestFuture(f.pid, &SendMessageMsg{
		SenderID:   f.alice.ID,
		ReceiverID: uuid.New(),
		Body:       "hello?",
	}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok = result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
	assert.Contains(t, appErr.Message, "Invalid recipient")
}

func TestMarkConversationReadIsIdempotent(t *testing.T) {
	f := newMessageFixture(t)

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.alice.ID, f.bob.ID, "two")

	markRead := func() bool {
		result, err := f.system.Root.RequestFuture(f.pid, &MarkConversationReadMsg{
			ReaderID: f.bob.ID,
			PeerID:   f.alice.ID,
		}, 5*time.Second).Result()
		require.NoError(t, err)
		changed, ok := result.(bool)
		require.True(t, ok)
		return changed
	}

	assert.True(t, markRead())
	assert.False(t, markRead(), "second mark-read should find nothing to flip")

	history := f.history(t, f.bob.ID, f.alice.ID)
	for _, m := range history {
		assert.True(t, m.IsRead)
	}

	// Reading never flips the reader's own outgoing messages.
	f.send(t, f.bob.ID, f.alice.ID, "reply")
	assert.False(t, markRead())
	history = f.history(t, f.bob.ID, f.alice.ID)
	assert.False(t, history[2].IsRead)
}

func TestUnreadCountAndLastMessage(t *testing.T) {
	f := newMessageFixture(t)

	f.send(t, f.alice.ID, f.bob.ID, "one")
	f.send(t, f.alice.ID, f.bob.ID, "two")
	f.send(t, f.bob.ID, f.alice.ID, "three")

	result, err := f.system.Root.RequestFuture(f.pid, &GetUnreadCountMsg{
		OwnerID: f.bob.ID,
		PeerID:  f.alice.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 2, result)

	result, err = f.system.Root.RequestFuture(f.pid, &GetLastMessageMsg{
		OwnerID: f.bob.ID,
		PeerID:  f.alice.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	last, ok := result.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, "three", last.Body)
}

func TestConversationSummaries(t *testing.T) {
	f := newMessageFixture(t)
	carol := registerUser(t, f.system, f.users, "carol", "carol@pond.io")

	f.send(t, f.bob.ID, f.alice.ID, "from bob")
	f.send(t, carol.ID, f.alice.ID, "from carol, later")

	result, err := f.system.Root.RequestFuture(f.pid, &GetConversationSummariesMsg{
		OwnerID: f.alice.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)

	summaries, ok := result.([]*ConversationSummary)
	require.True(t, ok)
	require.Len(t, summaries, 2)

	// Newest conversation first.
	assert.Equal(t, carol.ID, summaries[0].PeerID)
	assert.Equal(t, 1, summaries[0].UnreadCount)
	assert.Equal(t, "from carol, later", summaries[0].LastMessage.Body)
	assert.Equal(t, f.bob.ID, summaries[1].PeerID)
}

func TestLoadMessagesRestoresOrderAndSeq(t *testing.T) {
	f := newMessageFixture(t)

	at := time.Now().Add(-time.Hour)
	seed := []*models.Message{
		{ID: uuid.New(), SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "second", CreatedAt: at, Seq: 2},
		{ID: uuid.New(), SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "first", CreatedAt: at, Seq: 1},
		{ID: uuid.New(), SenderID: f.bob.ID, ReceiverID: f.alice.ID, Body: "third", CreatedAt: at.Add(time.Minute), Seq: 3},
	}

	_, err := f.system.Root.RequestFuture(f.pid, &LoadMessagesMsg{Messages: seed}, 5*time.Second).Result()
	require.NoError(t, err)

	history := f.history(t, f.alice.ID, f.bob.ID)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Body)
	assert.Equal(t, "second", history[1].Body)
	assert.Equal(t, "third", history[2].Body)

	// New sends continue the restored sequence.
	sent := f.send(t, f.alice.ID, f.bob.ID, "fourth")
	assert.Equal(t, uint64(4), sent.Seq)
}

func TestFetchedConversationIsASnapshot(t *testing.T) {
	f := newMessageFixture(t)

	f.send(t, f.alice.ID, f.bob.ID, "hello")
	f.send(t, f.alice.ID, f.bob.ID, "anyone there?")

	before := f.history(t, f.bob.ID, f.alice.ID)
	require.Len(t, before, 2)
	assert.False(t, before[0].IsRead)

	result, err := f.system.Root.RequestFuture(f.pid, &MarkConversationReadMsg{
		ReaderID: f.bob.ID,
		PeerID:   f.alice.ID,
	}, 5*time.Second).Result()
	require.NoError(t, err)
	require.Equal(t, true, result)

	// The earlier fetch must stay frozen; the read flip only shows up
	// on the next fetch.
	assert.False(t, before[0].IsRead)
	assert.False(t, before[1].IsRead)

	after := f.history(t, f.bob.ID, f.alice.ID)
	assert.True(t, after[0].IsRead)
	assert.True(t, after[1].IsRead)
}
