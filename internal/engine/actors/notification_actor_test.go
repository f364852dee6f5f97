package actors

import (
	"fmt"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pondside/internal/models"
	"pondside/internal/utils"
)

func spawnNotificationActor(t *testing.T, system *actor.ActorSystem) *actor.PID {
	t.Helper()
	return system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewNotificationActor(utils.NewMetricsCollector(), nil, nil)
	}))
}

func TestNotificationPushAndRead(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnNotificationActor(t, system)
	recipient := uuid.New()

	result, err := system.Root.RequestFuture(pid, &PushNotificationMsg{
		RecipientID: recipient,
		Kind:        models.NotifyMessage,
		Content:     "New message from alice",
	}, 5*time.Second).Result()
	require.NoError(t, err)
	pushed, ok := result.(*models.Notification)
	require.True(t, ok)
	assert.False(t, pushed.IsRead)

	result, err = system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: recipient}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok := result.([]*models.Notification)
	require.True(t, ok)
	require.Len(t, unread, 1)
	assert.Equal(t, "New message from alice", unread[0].Content)

	result, err = system.Root.RequestFuture(pid, &MarkNotificationsReadMsg{RecipientID: recipient}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Marking again finds nothing, and the unread view is empty but
	// never nil.
	result, err = system.Root.RequestFuture(pid, &MarkNotificationsReadMsg{RecipientID: recipient}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: recipient}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok = result.([]*models.Notification)
	require.True(t, ok)
	assert.Empty(t, unread)
	assert.NotNil(t, unread)
}

func TestNotificationBacklogIsBounded(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnNotificationActor(t, system)
	recipient := uuid.New()

	total := maxBacklog + 25
	for i := 0; i < total; i++ {
		_, err := system.Root.RequestFuture(pid, &PushNotificationMsg{
			RecipientID: recipient,
			Kind:        models.NotifyMessage,
			Content:     fmt.Sprintf("notification %d", i),
		}, 5*time.Second).Result()
		require.NoError(t, err)
	}

	result, err := system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: recipient}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok := result.([]*models.Notification)
	require.True(t, ok)
	require.Len(t, unread, maxBacklog)

	// Oldest entries are the ones dropped.
	assert.Equal(t, fmt.Sprintf("notification %d", total-maxBacklog), unread[0].Content)
	assert.Equal(t, fmt.Sprintf("notification %d", total-1), unread[len(unread)-1].Content)
}

func TestNotificationInboxesAreIsolated(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnNotificationActor(t, system)
	alice := uuid.New()
	bob := uuid.New()

	_, err := system.Root.RequestFuture(pid, &PushNotificationMsg{
		RecipientID: alice,
		Kind:        models.NotifyCall,
		Content:     "Incoming audio call from bob",
	}, 5*time.Second).Result()
	require.NoError(t, err)

	result, err := system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: bob}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok := result.([]*models.Notification)
	require.True(t, ok)
	assert.Empty(t, unread)
}

func TestLoadNotificationsRestoresInboxes(t *testing.T) {
	system := actor.NewActorSystem()
	pid := spawnNotificationActor(t, system)
	frog := uuid.New()
	toad := uuid.New()

	base := time.Now().Add(-time.Hour)
	carried := []*models.Notification{
		{ID: uuid.New(), RecipientID: frog, Kind: models.NotifyMessage, Content: "New message from toad", CreatedAt: base},
		{ID: uuid.New(), RecipientID: frog, Kind: models.NotifyCall, Content: "Incoming audio call from toad", CreatedAt: base.Add(time.Minute)},
		{ID: uuid.New(), RecipientID: toad, Kind: models.NotifyMessage, Content: "New message from frog", CreatedAt: base.Add(2 * time.Minute)},
	}

	_, err := system.Root.RequestFuture(pid, &LoadNotificationsMsg{Notifications: carried}, 5*time.Second).Result()
	require.NoError(t, err)

	result, err := system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: frog}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok := result.([]*models.Notification)
	require.True(t, ok)
	require.Len(t, unread, 2)
	assert.Equal(t, "New message from toad", unread[0].Content)
	assert.Equal(t, "Incoming audio call from toad", unread[1].Content)

	// The reloaded backlog behaves like a live one: reads clear it.
	result, err = system.Root.RequestFuture(pid, &MarkNotificationsReadMsg{RecipientID: frog}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = system.Root.RequestFuture(pid, &GetUnreadNotificationsMsg{RecipientID: toad}, 5*time.Second).Result()
	require.NoError(t, err)
	unread, ok = result.([]*models.Notification)
	require.True(t, ok)
	require.Len(t, unread, 1)
	assert.Equal(t, "New message from frog", unread[0].Content)
}
