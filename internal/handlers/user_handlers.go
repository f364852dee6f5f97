package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"pondside/internal/engine/actors"
	"pondside/internal/middleware"
	"pondside/internal/models"
	"pondside/internal/storage"
	"pondside/internal/utils"
)

// RegisterUserRequest represents a request to register a new user
type RegisterUserRequest struct {
	Handle      string `json:"handle"`
	Address     string `json:"address"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents a request to log in a user
type LoginRequest struct {
	HandleOrAddress string `json:"handleOrAddress"`
	Password        string `json:"password"`
}

// LoginResponse represents a response to a login request
type LoginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token,omitempty"`
	Error   string       `json:"error,omitempty"`
	User    *models.User `json:"user,omitempty"`
}

// HandleUserRegistration handles requests to register a new user
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.RegisterUserMsg{
			Handle:      req.Handle,
			Address:     req.Address,
			Password:    req.Password,
			DisplayName: req.DisplayName,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"user":    result,
		})
	}
}

// HandleUserLogin handles requests to log in a user
func (s *Server) HandleUserLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request body", err))
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.LoginMsg{
			HandleOrAddress: req.HandleOrAddress,
			Password:        req.Password,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		loginResp, ok := result.(*actors.LoginResponse)
		if !ok {
			respondError(w, utils.NewAppError(utils.ErrDatabase, "unexpected login response", nil))
			return
		}
		if !loginResp.Success {
			respondJSON(w, http.StatusUnauthorized, &LoginResponse{
				Success: false,
				Error:   loginResp.Error,
			})
			return
		}

		token, err := middleware.GenerateToken(loginResp.User.ID)
		if err != nil {
			respondError(w, utils.NewAppError(utils.ErrDatabase, "Failed to generate auth token", err))
			return
		}

		respondJSON(w, http.StatusOK, &LoginResponse{
			Success: true,
			Token:   token,
			User:    loginResp.User,
		})
	}
}

// HandleUserLogout sets the caller offline.
func (s *Server) HandleUserLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		if _, appErr := s.ask(s.Engine.GetUserActor(), &actors.DisconnectUserMsg{UserID: userID}); appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// HandleHeartbeat refreshes the caller's last_seen so the liveness
// sweep keeps them online.
func (s *Server) HandleHeartbeat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		if _, appErr := s.ask(s.Engine.GetUserActor(), &actors.HeartbeatMsg{UserID: userID}); appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// HandleUserProfile returns the caller's own profile.
func (s *Server) HandleUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.GetUserProfileMsg{UserID: userID})
		if appErr != nil {
			respondError(w, appErr)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// HandleUpdateProfile accepts a multipart form: display_name, address,
// bio and an optional avatar file (jpg/jpeg/png/gif, 5 MiB cap).
func (s *Server) HandleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := identity(r)
		if !ok {
			respondNotAuthenticated(w)
			return
		}

		if err := r.ParseMultipartForm(storage.MaxAvatarSize + 4096); err != nil {
			respondError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid multipart form", err))
			return
		}

		avatarRef := ""
		if file, header, err := r.FormFile("avatar"); err == nil {
			defer file.Close()
			ref, saveErr := s.Avatars.Save(header.Filename, header.Size, file)
			if saveErr != nil {
				if appErr, ok := saveErr.(*utils.AppError); ok {
					respondError(w, appErr)
				} else {
					respondError(w, utils.NewAppError(utils.ErrDatabase, "Failed to store avatar", saveErr))
				}
				return
			}
			avatarRef = ref
		}

		result, appErr := s.ask(s.Engine.GetUserActor(), &actors.UpdateProfileMsg{
			UserID:      userID,
			DisplayName: r.FormValue("display_name"),
			Address:     r.FormValue("address"),
			Bio:         r.FormValue("bio"),
			AvatarRef:   avatarRef,
		})
		if appErr != nil {
			respondError(w, appErr)
			return
		}

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"user":    result,
		})
	}
}

// HandleAvatar serves a stored avatar by its reference.
func (s *Server) HandleAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := mux.Vars(r)["ref"]
		f, err := s.Avatars.Open(ref)
		if err != nil {
			if appErr, ok := err.(*utils.AppError); ok {
				respondError(w, appErr)
			} else {
				respondError(w, utils.NewAppError(utils.ErrNotFound, "Avatar not found", err))
			}
			return
		}
		defer f.Close()
		io.Copy(w, f)
	}
}
