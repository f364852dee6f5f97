package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"pondside/internal/engine/actors"
	"pondside/internal/models"
	"pondside/internal/utils"
)

// InitiateCallRequest represents a request to start a call
type InitiateCallRequest struct {
	ReceiverID string `json:"receiverId"`
	Kind       string `json:"kind"`
}

// CallPeerRequest addresses the caller's active call with a peer; the
// accept/decline/end/signal routes all share it.
type CallPeerRequest struct {
	PeerID  string          `json:"peerId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func parseCallPeer(r *http.Request) (*CallPeerRequest, uuid.UUID, *utils.AppError) {
	var req CallPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, uuid.Nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err)
	}
	peerID, err := uuid.Parse(req.PeerID)
	if err != nil {
		return nil, uuid.Nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid peer ID", err)
	}
	return &req, peerID, nil
}

// HandleInitiateCall handles requests to start an audio or video call
func (s *Server) HandleInitiateCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		var req InitiateCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}
		receiverID, err := uuid.Parse(req.ReceiverID)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid receiver ID", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetCallActor(), &actors.InitiateCallMsg{
			CallerID:   userID,
			ReceiverID: receiverID,
			Kind:       models.CallKind(req.Kind),
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"call":    result,
		})
	}
}

// HandleAcceptCall handles the receiver accepting a ringing call
func (s *Server) HandleAcceptCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}
		_, peerID, appErr := parseCallPeer(r)
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		result, appErr := s.ask(s.Engine.GetCallActor(), &actors.AcceptCallMsg{
			UserID: userID,
			PeerID: peerID,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"call":    result,
		})
	}
}

// HandleDeclineCall handles the receiver declining a ringing call
func (s *Server) HandleDeclineCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}
		_, peerID, appErr := parseCallPeer(r)
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		result, appErr := s.ask(s.Engine.GetCallActor(), &actors.DeclineCallMsg{
			UserID: userID,
			PeerID: peerID,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"call":    result,
		})
	}
}

// HandleEndCall ends the caller's active call with the peer. Ending
// when no call is active reports success without touching anything.
func (s *Server) HandleEndCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}
		_, peerID, appErr := parseCallPeer(r)
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		if _, appErr := s.ask(s.Engine.GetCallActor(), &actors.EndCallMsg{
			UserID: userID,
			PeerID: peerID,
		}); appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// HandleCallSignal relays an opaque signaling payload (offer, answer,
// ICE candidate) to the other party of the active call.
func (s *Server) HandleCallSignal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}
		req, peerID, appErr := parseCallPeer(r)
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		if len(req.Payload) == 0 {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Missing signal payload", nil))
			return
		}

		if _, appErr := s.ask(s.Engine.GetCallActor(), &actors.RelaySignalMsg{
			FromID:  userID,
			PeerID:  peerID,
			Payload: req.Payload,
		}); appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
