package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/api/internal/platform/httpx"
	"github.com/spokeworks/api/internal/services"
)

const maxAuthBodySize = 16 * 1024

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

// AuthHandlers exposes the public registration and login endpoints.
type AuthHandlers struct {
	users        services.UserService
	loginLimiter rateLimiter
}

// AuthOption customises the auth handlers before construction.
type AuthOption func(*AuthHandlers)

// WithLoginRateLimit throttles login attempts per username within the window.
func WithLoginRateLimit(limit int, window time.Duration, clock func() time.Time) AuthOption {
	return func(h *AuthHandlers) {
		h.loginLimiter = newSimpleRateLimiter(limit, window, clock)
	}
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(users services.UserService, opts ...AuthOption) *AuthHandlers {
	h := &AuthHandlers{users: users}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req registerRequest
	if err := decodeJSONBody(w, r, &req, maxAuthBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	user, err := h.users.Register(ctx, services.RegisterUserCommand{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildUserPayload(user))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if err := decodeJSONBody(w, r, &req, maxAuthBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if h.loginLimiter != nil && !h.loginLimiter.Allow(strings.ToLower(strings.TrimSpace(req.Username))) {
		httpx.WriteError(ctx, w, httpx.NewError("too_many_attempts", "too many login attempts, try again later", http.StatusTooManyRequests))
		return
	}

	result, err := h.users.Login(ctx, services.LoginCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User:  buildUserPayload(result.User),
	})
}

func buildUserPayload(user services.User) userPayload {
	payload := userPayload{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Phone:    user.Phone,
		Role:     user.Role,
	}
	if !user.CreatedAt.IsZero() {
		payload.CreatedAt = user.CreatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUsernameTaken):
		httpx.WriteError(ctx, w, httpx.NewError("username_taken", "username already taken", http.StatusConflict))
	case errors.Is(err, services.ErrInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid username or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process user request", http.StatusInternalServerError))
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
