package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/user"
)

type userSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userResponse struct {
	Message string      `json:"message"`
	User    interface{} `json:"user"`
}

func summarize(u *storage.User) userSummary {
	return userSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.respondFailure(w, err, "Failed to retrieve user")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Email and name are required")
		return
	}

	u, err := s.users.Register(r.Context(), req.Email, req.Name)
	if err != nil {
		s.respondFailure(w, err, "Failed to register user")
		return
	}
	respondJSON(w, http.StatusCreated, userResponse{Message: "User registered successfully", User: summarize(u)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}

	u, err := s.users.Login(r.Context(), req.Email)
	if err != nil {
		// unknown email is an authentication failure, not a missing resource
		if errors.Is(err, apperr.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "User not found")
			return
		}
		s.respondFailure(w, err, "Failed to login")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{Message: "Login successful", User: summarize(u)})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := s.users.UpdateProfile(r.Context(), mux.Vars(r)["userId"], user.ProfileUpdate{Name: req.Name})
	if err != nil {
		s.respondFailure(w, err, "Failed to update user")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: u})
}
