package handlers

import (
	"net/http"

	"pondside/internal/engine/actors"
)

// HandleGetNotifications returns the caller's unread notifications,
// oldest first.
func (s *Server) HandleGetNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		result, appErr := s.ask(s.Engine.GetNotificationActor(), &actors.GetUnreadNotificationsMsg{RecipientID: userID})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleMarkNotificationsRead clears the caller's unread backlog.
func (s *Server) HandleMarkNotificationsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		if _, appErr := s.ask(s.Engine.GetNotificationActor(), &actors.MarkNotificationsReadMsg{RecipientID: userID}); appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
