package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/api/internal/platform/auth"
	"github.com/spokeworks/api/internal/platform/httpx"
	"github.com/spokeworks/api/internal/services"
)

type promoteUserRequest struct {
	Role string `json:"role"`
}

type userListResponse struct {
	Items []userPayload `json:"items"`
}

// UserHandlers exposes the administrative user endpoints.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs a new UserHandlers instance.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{
		authn: authn,
		users: users,
	}
}

// Routes registers the /users endpoints. All of them are admin only.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Get("/", h.listUsers)
	r.Post("/{userID}/promote", h.promoteUser)
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	items := make([]userPayload, 0, len(users))
	for _, user := range users {
		items = append(items, buildUserPayload(user))
	}
	writeJSONResponse(w, http.StatusOK, userListResponse{Items: items})
}

func (h *UserHandlers) promoteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service unavailable", http.StatusServiceUnavailable))
		return
	}

	raw := strings.TrimSpace(chi.URLParam(r, "userID"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id must be a positive integer", http.StatusBadRequest))
		return
	}

	var req promoteUserRequest
	if err := decodeJSONBody(w, r, &req, maxAuthBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	user, err := h.users.Promote(ctx, services.PromoteUserCommand{
		UserID:  userID,
		Role:    req.Role,
		ActorID: identity.UserID,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildUserPayload(user))
}
