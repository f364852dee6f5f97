package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"

	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/middleware"
	"pondside/internal/storage"
	"pondside/internal/utils"
	"pondside/internal/websocket"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Metrics        *utils.MetricsCollector
	Hub            *websocket.Hub
	Avatars        *storage.AvatarStore
	MongoDB        *database.MongoDB
	RequestTimeout time.Duration
	MetricsEnabled bool
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	eng *engine.Engine,
	metrics *utils.MetricsCollector,
	hub *websocket.Hub,
	avatars *storage.AvatarStore,
	mongodb *database.MongoDB,
) *Server {
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         eng,
		Metrics:        metrics,
		Hub:            hub,
		Avatars:        avatars,
		MongoDB:        mongodb,
		RequestTimeout: 5 * time.Second, // Default timeout for actor requests
		MetricsEnabled: true,
	}
}

// ask sends a request to an actor and waits for the reply, folding
// actor timeouts and AppError replies into a single error path.
func (s *Server) ask(pid *actor.PID, msg interface{}) (interface{}, *utils.AppError) {
	s.Metrics.IncrementRequests()
	future := s.Context.RequestFuture(pid, msg, s.RequestTimeout)
	result, err := future.Result()
	if err != nil {
		s.Metrics.IncrementErrors()
		return nil, utils.NewAppError(utils.ErrActorTimeout, "actor request timed out", err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		s.Metrics.IncrementErrors()
		return nil, appErr
	}
	return result, nil
}

// identity extracts the authenticated user from the request context.
func identity(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserIDFromContext(r.Context())
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, appErr *utils.AppError) {
	respondJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), map[string]interface{}{
		"success": false,
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func respondNotAuthenticated(w http.ResponseWriter) {
	respondError(w, utils.NewUnauthorizedError("not authenticated"))
}

// HandleHealth reports liveness, plus the metrics snapshot unless
// metrics reporting is disabled in the config.
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "healthy"}
		if s.MetricsEnabled {
			body["metrics"] = s.Metrics.Snapshot()
		}
		respondJSON(w, http.StatusOK, body)
	}
}
