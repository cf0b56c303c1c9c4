package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/api/internal/platform/auth"
	"github.com/spokeworks/api/internal/platform/httpx"
	"github.com/spokeworks/api/internal/services"
)

const maxBikeBodySize = 16 * 1024

type registerBikeRequest struct {
	LicensePlate string `json:"license_plate"`
	Model        string `json:"model"`
}

type bikePayload struct {
	ID           int64  `json:"id"`
	OwnerID      int64  `json:"ownerId"`
	LicensePlate string `json:"licensePlate"`
	Model        string `json:"model,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type bikeListResponse struct {
	Items []bikePayload `json:"items"`
}

// BikeHandlers exposes the vehicle registration endpoints.
type BikeHandlers struct {
	authn *auth.Authenticator
	bikes services.BikeService
}

// NewBikeHandlers constructs a new BikeHandlers instance.
func NewBikeHandlers(authn *auth.Authenticator, bikes services.BikeService) *BikeHandlers {
	return &BikeHandlers{
		authn: authn,
		bikes: bikes,
	}
}

// Routes registers the /bikes endpoints.
func (h *BikeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.registerBike)
	r.Get("/", h.listBikes)
	r.Get("/{bikeID}", h.getBike)
}

func (h *BikeHandlers) registerBike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.bikes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("bike_service_unavailable", "bike service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req registerBikeRequest
	if err := decodeJSONBody(w, r, &req, maxBikeBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	bike, err := h.bikes.RegisterBike(ctx, services.RegisterBikeCommand{
		OwnerID:      identity.UserID,
		LicensePlate: req.LicensePlate,
		Model:        req.Model,
	})
	if err != nil {
		writeBikeError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildBikePayload(bike))
}

func (h *BikeHandlers) listBikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.bikes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("bike_service_unavailable", "bike service unavailable", http.StatusServiceUnavailable))
		return
	}

	ownerID := identity.UserID
	if isStaff(identity) {
		if raw := strings.TrimSpace(r.URL.Query().Get("owner_id")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "owner_id must be an integer", http.StatusBadRequest))
				return
			}
			ownerID = parsed
		}
	}

	bikes, err := h.bikes.ListBikes(ctx, ownerID)
	if err != nil {
		writeBikeError(ctx, w, err)
		return
	}

	items := make([]bikePayload, 0, len(bikes))
	for _, bike := range bikes {
		items = append(items, buildBikePayload(bike))
	}
	writeJSONResponse(w, http.StatusOK, bikeListResponse{Items: items})
}

func (h *BikeHandlers) getBike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.bikes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("bike_service_unavailable", "bike service unavailable", http.StatusServiceUnavailable))
		return
	}

	raw := strings.TrimSpace(chi.URLParam(r, "bikeID"))
	bikeID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || bikeID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "bike id must be a positive integer", http.StatusBadRequest))
		return
	}

	bike, err := h.bikes.GetBike(ctx, bikeID)
	if err != nil {
		writeBikeError(ctx, w, err)
		return
	}

	if !isStaff(identity) && bike.OwnerID != identity.UserID {
		httpx.WriteError(ctx, w, httpx.NewError("bike_not_found", "bike not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildBikePayload(bike))
}

func buildBikePayload(bike services.Bike) bikePayload {
	payload := bikePayload{
		ID:           bike.ID,
		OwnerID:      bike.OwnerID,
		LicensePlate: bike.LicensePlate,
		Model:        bike.Model,
	}
	if !bike.CreatedAt.IsZero() {
		payload.CreatedAt = bike.CreatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func writeBikeError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBikeInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBikeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("bike_not_found", "bike not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBikeConflict):
		httpx.WriteError(ctx, w, httpx.NewError("bike_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("bike_error", "failed to process bike request", http.StatusInternalServerError))
	}
}
