package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"pondside/internal/engine/actors"
	"pondside/internal/models"
	"pondside/internal/utils"
)

// SendMessageRequest represents a request to send a direct message
type SendMessageRequest struct {
	ReceiverID    string `json:"receiverId"`
	Body          string `json:"body"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
}

// ConversationView is one row of the conversation list: the peer's
// profile with a human presence line, plus the unread count and last
// message for ordering and preview.
type ConversationView struct {
	Peer        *models.User    `json:"peer"`
	Presence    string          `json:"presence"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *models.Message `json:"lastMessage,omitempty"`
}

// HandleSendMessage handles requests to send a direct message
func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}
		receiverID, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid receiver ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetMessageActor(), &actors.SendMessageMsg{
			SenderID:      userID,
			ReceiverID:    receiverID,
			Body:          req.Body,
			AttachmentRef: req.AttachmentRef,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		message, ok := result.(*models.Message)
		if !ok {
			respondError(w, utils.NewAppError(utils.ErrActorTimeout, "unexpected send result", nil))
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"messageId": message.ID,
			"message":   message,
		})
	}
}

// HandleGetMessages returns the full ordered history with a peer.
// Fetching flips delivered on messages addressed to the caller.
func (s *Server) HandleGetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}
		peerID, err := uuid.Parse(r.URL.Query().Get("peerId"))
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid peer ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetMessageActor(), &actors.GetConversationMsg{
			UserID: userID,
			PeerID: peerID,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleMarkRead flips is_read on every unread message from the peer
// to the caller. Safe to call repeatedly.
func (s *Server) HandleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		var req struct {
			PeerID string `json:"peerId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}
		peerID, err := uuid.Parse(req.PeerID)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid peer ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetMessageActor(), &actors.MarkConversationReadMsg{
			ReaderID: userID,
			PeerID:   peerID,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"changed": result,
		})
	}
}

// HandleListConversations composes the directory with per-peer message
// summaries: every other known user appears, with presence text and,
// where a history exists, unread count and last message.
func (s *Server) HandleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		usersResult, appErr := s.ask(s.Engine.GetUserActor(), &actors.ListUsersMsg{ExceptID: userID})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		users, ok := usersResult.([]*models.User)
		if !ok {
			respondError(w, utils.NewAppError(utils.ErrDatabase, "unexpected directory response", nil))
			return
		}

		summariesResult, appErr := s.ask(s.Engine.GetMessageActor(), &actors.GetConversationSummariesMsg{OwnerID: userID})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		summaries, _ := summariesResult.([]*actors.ConversationSummary)
		byPeer := make(map[uuid.UUID]*actors.ConversationSummary, len(summaries))
		for _, sum := range summaries {
			byPeer[sum.PeerID] = sum
		}

		now := time.Now()
		views := make([]*ConversationView, 0, len(users))
		for _, u := range users {
			view := &ConversationView{
				Peer:     u,
				Presence: models.PresenceText(u.Status, u.LastSeen, now),
			}
			if sum, found := byPeer[u.ID]; found {
				view.UnreadCount = sum.UnreadCount
				view.LastMessage = sum.LastMessage
			}
			views = append(views, view)
		}

		// Peers with traffic float up, newest conversation first; the
		// rest keep the directory's handle ordering.
		sort.SliceStable(views, func(i, j int) bool {
			a, b := views[i], views[j]
			switch {
			case a.LastMessage == nil && b.LastMessage == nil:
				return false
			case b.LastMessage == nil:
				return true
			case a.LastMessage == nil:
				return false
			default:
				return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
			}
		})

		respondJSON(w, http.StatusOK, views)
	}
}
