package handlers

import (
	"net/http"

	"github.com/mermaid-studio/engine/internal/api/types"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/services"
)

type AuthHandler struct {
	svc services.AuthService
}

func NewAuthHandler(svc services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary  Register a user
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body types.RegisterRequest true "account"
// @Success  201 {object} types.APIResponse{data=types.UserResponse}
// @Failure  409 {object} types.APIResponse
// @Router   /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, userResponse(u), nil)
}

// Login godoc
// @Summary  Exchange credentials for a bearer token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body types.LoginRequest true "credentials"
// @Success  200 {object} types.APIResponse{data=types.TokenResponse}
// @Failure  401 {object} types.APIResponse
// @Router   /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   86400,
		User:        userResponse(u),
	}, nil)
}

func userResponse(u *models.User) types.UserResponse {
	return types.UserResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name, IsAdmin: u.IsAdmin, Roles: u.Roles}
}
