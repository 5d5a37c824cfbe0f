package http

import (
	"encoding/json"
	"net/http"
	"time"

	"splitledger/internal/core"
	"splitledger/internal/log"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	name := sanitizeInput(req.Name)
	email := sanitizeInput(req.Email)
	if name == "" || email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "name and email are required"})
		return
	}

	user, err := s.authn.Register(r.Context(), name, email, req.Password)
	if err != nil {
		s.logger.WarnContext(r.Context(), "Registration failed", log.FieldError, err)
		writeError(w, err)
		return
	}

	// The balance divides shared spending by the user count, so every
	// cached summary is stale the moment a user joins.
	s.summaryCache.Purge()
	s.overviewCache.Purge()

	s.logger.InfoContext(r.Context(), "User registered", log.FieldUserID, user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := s.authn.Authenticate(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token generation failed", log.FieldError, err, log.FieldUserID, user.ID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not create session"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserResponse(user)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListUsers(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "User listing failed", log.FieldError, err)
		writeError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}
