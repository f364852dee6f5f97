package actors

import (
	"log"
	"sort"
	"time"

	stdctx "context"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pondside/internal/database"
	"pondside/internal/events"
	"pondside/internal/models"
	"pondside/internal/utils"
	"pondside/internal/websocket"
)

// Message types for UserActor
type (
	RegisterUserMsg struct {
		Handle      string
		Address     string
		Password    string
		DisplayName string
	}

	LoginMsg struct {
		HandleOrAddress string
		Password        string
	}

	// ConnectUserMsg marks a user online (login, ws attach).
	ConnectUserMsg struct {
		UserID uuid.UUID
	}

	// DisconnectUserMsg marks a user offline (logout).
	DisconnectUserMsg struct {
		UserID uuid.UUID
	}

	// HeartbeatMsg refreshes last_seen without changing status.
	HeartbeatMsg struct {
		UserID uuid.UUID
	}

	// SweepIdleMsg flips users offline whose heartbeat is older than TTL.
	SweepIdleMsg struct {
		TTL time.Duration
	}

	GetUserProfileMsg struct {
		UserID uuid.UUID
	}

	UpdateProfileMsg struct {
		UserID      uuid.UUID
		DisplayName string
		Address     string
		Bio         string
		AvatarRef   string // empty keeps the current avatar
	}

	ListUsersMsg struct {
		ExceptID uuid.UUID
	}

	// LoadUsersMsg seeds the directory from the durable store at boot.
	LoadUsersMsg struct {
		Users []*models.User
	}
)

// LoginResponse is the actor-level login result.
type LoginResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	User    *models.User `json:"user,omitempty"`
}

// UserActor owns the user directory and the presence machine state.
// All mutations pass through its mailbox, so the presence setters need
// no further locking.
type UserActor struct {
	users     map[uuid.UUID]*models.User
	byHandle  map[string]uuid.UUID
	byAddress map[string]uuid.UUID
	metrics   *utils.MetricsCollector
	hub       *websocket.Hub
	db        *database.MongoDB
}

func NewUserActor(metrics *utils.MetricsCollector, hub *websocket.Hub, db *database.MongoDB) actor.Actor {
	return &UserActor{
		users:     make(map[uuid.UUID]*models.User),
		byHandle:  make(map[string]uuid.UUID),
		byAddress: make(map[string]uuid.UUID),
		metrics:   metrics,
		hub:       hub,
		db:        db,
	}
}

// snapshotUser copies a directory entry before it leaves the mailbox;
// the actor keeps mutating the original on every presence change while
// handler goroutines encode the response.
func snapshotUser(user *models.User) *models.User {
	u := *user
	return &u
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *RegisterUserMsg:
		a.handleRegister(context, msg)
	case *LoginMsg:
		a.handleLogin(context, msg)
	case *ConnectUserMsg:
		a.setPresence(context, msg.UserID, models.StatusOnline)
	case *DisconnectUserMsg:
		a.setPresence(context, msg.UserID, models.StatusOffline)
	case *HeartbeatMsg:
		a.handleHeartbeat(context, msg)
	case *SweepIdleMsg:
		a.handleSweep(msg)
	case *GetUserProfileMsg:
		if user, exists := a.users[msg.UserID]; exists {
			context.Respond(snapshotUser(user))
		} else {
			context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		}
	case *UpdateProfileMsg:
		a.handleUpdateProfile(context, msg)
	case *ListUsersMsg:
		a.handleList(context, msg)
	case *LoadUsersMsg:
		for _, user := range msg.Users {
			a.users[user.ID] = user
			a.byHandle[user.Handle] = user.ID
			a.byAddress[user.Address] = user.ID
		}
		context.Respond(len(msg.Users))
	}
}

func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	startTime := time.Now()

	if msg.Handle == "" || msg.Address == "" || msg.Password == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "handle, address and password are required", nil))
		return
	}
	if _, exists := a.byHandle[msg.Handle]; exists {
		context.Respond(utils.NewAppError(utils.ErrDuplicate, "Handle or address already registered", nil))
		return
	}
	if _, exists := a.byAddress[msg.Address]; exists {
		context.Respond(utils.NewAppError(utils.ErrDuplicate, "Handle or address already registered", nil))
		return
	}

	hashed, err := hashPassword(msg.Password)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Failed to hash password", err))
		return
	}

	now := time.Now()
	user := &models.User{
		ID:             uuid.New(),
		Handle:         msg.Handle,
		Address:        msg.Address,
		HashedPassword: hashed,
		DisplayName:    msg.DisplayName,
		Status:         models.StatusOffline,
		LastSeen:       now,
		CreatedAt:      now,
	}

	a.users[user.ID] = user
	a.byHandle[user.Handle] = user.ID
	a.byAddress[user.Address] = user.ID

	if a.db != nil {
		if err := a.db.SaveUser(stdctx.Background(), user); err != nil {
			log.Printf("Failed to save user %s: %v", user.ID, err)
		}
	}

	a.metrics.AddOperationLatency("register_user", time.Since(startTime))
	context.Respond(snapshotUser(user))
}

func (a *UserActor) handleLogin(context actor.Context, msg *LoginMsg) {
	id, exists := a.byHandle[msg.HandleOrAddress]
	if !exists {
		id, exists = a.byAddress[msg.HandleOrAddress]
	}
	if !exists {
		context.Respond(&LoginResponse{Success: false, Error: "Invalid credentials"})
		return
	}

	user := a.users[id]
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(msg.Password)); err != nil {
		context.Respond(&LoginResponse{Success: false, Error: "Invalid credentials"})
		return
	}

	user.Status = models.StatusOnline
	user.LastSeen = time.Now()
	a.persistPresence(user)
	a.publishPresence(user)

	context.Respond(&LoginResponse{Success: true, User: snapshotUser(user)})
}

// setPresence stamps status and last_seen together; the two setters
// are commutative and idempotent.
func (a *UserActor) setPresence(context actor.Context, userID uuid.UUID, status models.UserStatus) {
	user, exists := a.users[userID]
	if !exists {
		context.Respond(utils.NewUserNotFoundError(userID.String()))
		return
	}

	user.Status = status
	user.LastSeen = time.Now()
	a.persistPresence(user)
	a.publishPresence(user)
	context.Respond(snapshotUser(user))
}

func (a *UserActor) handleHeartbeat(context actor.Context, msg *HeartbeatMsg) {
	user, exists := a.users[msg.UserID]
	if !exists {
		context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		return
	}

	user.LastSeen = time.Now()
	if user.Status != models.StatusOnline {
		user.Status = models.StatusOnline
		a.publishPresence(user)
	}
	a.persistPresence(user)
	context.Respond(snapshotUser(user))
}

// handleSweep is the liveness fallback: a crashed client that stopped
// heartbeating goes offline once its last_seen exceeds the TTL.
func (a *UserActor) handleSweep(msg *SweepIdleMsg) {
	cutoff := time.Now().Add(-msg.TTL)
	for _, user := range a.users {
		if user.Status == models.StatusOnline && user.LastSeen.Before(cutoff) {
			user.Status = models.StatusOffline
			a.persistPresence(user)
			a.publishPresence(user)
		}
	}
}

func (a *UserActor) handleUpdateProfile(context actor.Context, msg *UpdateProfileMsg) {
	user, exists := a.users[msg.UserID]
	if !exists {
		context.Respond(utils.NewUserNotFoundError(msg.UserID.String()))
		return
	}

	if msg.Address != "" && msg.Address != user.Address {
		if _, taken := a.byAddress[msg.Address]; taken {
			context.Respond(utils.NewAppError(utils.ErrDuplicate, "Address already registered", nil))
			return
		}
		delete(a.byAddress, user.Address)
		user.Address = msg.Address
		a.byAddress[user.Address] = user.ID
	}

	user.DisplayName = msg.DisplayName
	user.Bio = msg.Bio
	if msg.AvatarRef != "" {
		user.AvatarRef = msg.AvatarRef
	}

	if a.db != nil {
		if err := a.db.SaveUser(stdctx.Background(), user); err != nil {
			log.Printf("Failed to save user %s: %v", user.ID, err)
		}
	}
	context.Respond(snapshotUser(user))
}

func (a *UserActor) handleList(context actor.Context, msg *ListUsersMsg) {
	users := make([]*models.User, 0, len(a.users))
	for id, user := range a.users {
		if id == msg.ExceptID {
			continue
		}
		users = append(users, snapshotUser(user))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Handle < users[j].Handle })
	context.Respond(users)
}

func (a *UserActor) persistPresence(user *models.User) {
	if a.db == nil {
		return
	}
	if err := a.db.UpdatePresence(stdctx.Background(), user.ID, user.Status, user.LastSeen); err != nil {
		log.Printf("Failed to persist presence for user %s: %v", user.ID, err)
	}
}

func (a *UserActor) publishPresence(user *models.User) {
	if a.hub == nil {
		return
	}
	a.hub.PublishAll(events.Marshal(events.TypePresence, &events.PresenceEvent{
		UserID:   user.ID,
		Status:   user.Status,
		LastSeen: user.LastSeen,
	}))
}
