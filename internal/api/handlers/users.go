package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/api/problem"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
)

type UsersHandler struct {
	Service    *users.Service
	JWTManager *auth.JWTManager
	Audit      *audit.Logger
	Env        string
}

func NewUsersHandler(service *users.Service, jwtManager *auth.JWTManager, auditLogger *audit.Logger, env string) *UsersHandler {
	return &UsersHandler{Service: service, JWTManager: jwtManager, Audit: auditLogger, Env: env}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      userResponse `json:"user"`
}

// Register handles POST /api/v1/users. New accounts always get the user role.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	user, err := h.Service.Register(r.Context(), users.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	actor := audit.Actor{Role: string(auth.RoleUser)}
	resourceID := ""
	if user != nil {
		actor.ID = user.ID
		resourceID = user.ID
	}
	h.Audit.LogFromRequest(r, actor, "user.register", "user", resourceID, map[string]string{"username": req.Username}, err)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.Header().Set("Location", "/api/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// Login handles POST /api/v1/auth/login and returns a bearer token.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.JWTManager == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Username and password are required", nil, h.Env)
		return
	}

	user, err := h.Service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.Audit.LogFromRequest(r, audit.Actor{}, "auth.login", "user", "", map[string]string{"username": req.Username}, err)
		writeError(w, r, err, h.Env)
		return
	}

	token, err := h.JWTManager.Generate(user.ID, user.Username, user.Role)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	h.Audit.LogFromRequest(r, audit.Actor{ID: user.ID, Role: user.Role}, "auth.login", "user", user.ID, nil, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.JWTManager.Expiry()).UTC().Format(time.RFC3339),
		User:      newUserResponse(user),
	})
}

// Me handles GET /api/v1/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.UserClaims(r)
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, h.Env)
		return
	}
	user, err := h.Service.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}
