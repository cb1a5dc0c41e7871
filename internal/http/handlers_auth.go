package http

import (
	"net/http"

	"hisaab/internal/auth"
	"hisaab/internal/core"
	"hisaab/internal/log"
)

type (
	registerRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	userResponse struct {
		Message string    `json:"message,omitempty"`
		User    core.User `json:"user"`
	}
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	u, err := s.users.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User registered",
		log.FieldUserID, u.ID,
		log.FieldComponent, log.ComponentAuth)
	writeJSON(w, http.StatusCreated, userResponse{Message: "User registered successfully", User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := storageContext(r)
	defer cancel()
	u, token, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	auth.SetTokenCookie(w, token, s.issuer.TTL(), s.cookieSecure)
	writeJSON(w, http.StatusOK, userResponse{Message: "Login successful", User: u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, s.cookieSecure)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()
	u, err := s.users.Get(ctx, currentUser(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: u})
}
