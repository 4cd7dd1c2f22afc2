// Package http provides the HTTP handlers and router of the account API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/middleware"
	"github.com/hase-lab/accountd/internal/models"
	"github.com/hase-lab/accountd/internal/service"
	"go.uber.org/zap"
)

// AccountService defines the account operations required by the HTTP
// handlers.
type AccountService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, in service.NewUser) (*models.User, error)
	LoginUser(ctx context.Context, username, password string) (*models.User, error)
	LogoutUser(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, token, newPassword string) error
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AccountHandler handles the account endpoints.
type AccountHandler struct {
	AccountService AccountService
	// Log receives unexpected errors; nil disables logging.
	Log *zap.Logger
}

// UserResponse is the JSON view of a user. The password hash is never
// exposed.
type UserResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Token        string `json:"token"`
	Status       string `json:"status"`
	CreationDate string `json:"creationDate"`
}

// CreateUserRequest is the registration payload.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest is the password change payload.
type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// NewUserResponse converts a user to its JSON view.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Token:        u.Token,
		Status:       string(u.Status),
		CreationDate: u.CreationDate.UTC().Format(time.DateOnly),
	}
}

// ListUsers handles GET /api/users.
func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AccountService.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, NewUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser handles POST /api/users.
func (h *AccountHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.AccountService.CreateUser(r.Context(), service.NewUser{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewUserResponse(user))
}

// Login handles POST /api/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.AccountService.LoginUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewUserResponse(user))
}

// Logout handles POST /api/logout. The token comes from the bearer header.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromContext(r.Context())
	if err := h.AccountService.LogoutUser(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireToken rejects the request unless its bearer token belongs to a
// live session. It runs ahead of body checks so that token errors take
// precedence over malformed payloads.
func (h *AccountHandler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := middleware.TokenFromContext(r.Context())
		if _, err := h.AccountService.Authenticate(r.Context(), token); err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ChangePassword handles PUT /api/users/password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token := middleware.TokenFromContext(r.Context())
	if err := h.AccountService.ChangePassword(r.Context(), token, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *common.Error
	if errors.As(err, &ce) {
		http.Error(w, ce.Message, ce.StatusCode())
		return
	}
	if h.Log != nil {
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
