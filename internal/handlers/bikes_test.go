package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/api/internal/services"
)

type stubBikeService struct {
	registerFn func(context.Context, services.RegisterBikeCommand) (services.Bike, error)
	getFn      func(context.Context, int64) (services.Bike, error)
	listFn     func(context.Context, int64) ([]services.Bike, error)
}

func (s *stubBikeService) RegisterBike(ctx context.Context, cmd services.RegisterBikeCommand) (services.Bike, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.Bike{}, errors.New("not implemented")
}

func (s *stubBikeService) GetBike(ctx context.Context, bikeID int64) (services.Bike, error) {
	if s.getFn != nil {
		return s.getFn(ctx, bikeID)
	}
	return services.Bike{}, errors.New("not implemented")
}

func (s *stubBikeService) ListBikes(ctx context.Context, ownerID int64) ([]services.Bike, error) {
	if s.listFn != nil {
		return s.listFn(ctx, ownerID)
	}
	return nil, nil
}

func newBikeTestRouter(bikes services.BikeService) chi.Router {
	h := NewBikeHandlers(testAuthenticator(), bikes)
	r := chi.NewRouter()
	r.Route("/bikes", h.Routes)
	return r
}

func TestBikeHandlersRegisterUsesCallerAsOwner(t *testing.T) {
	var got services.RegisterBikeCommand
	bikes := &stubBikeService{
		registerFn: func(_ context.Context, cmd services.RegisterBikeCommand) (services.Bike, error) {
			got = cmd
			return services.Bike{ID: 4, OwnerID: cmd.OwnerID, LicensePlate: "KK-1234"}, nil
		},
	}
	router := newBikeTestRouter(bikes)

	rr := doJSON(t, router, http.MethodPost, "/bikes", "customer-token", `{"license_plate":"kk-1234","model":"Wave 110i"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.OwnerID != 3 {
		t.Fatalf("expected owner from identity, got %d", got.OwnerID)
	}

	var payload bikePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.LicensePlate != "KK-1234" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBikeHandlersListStaffMayFilterByOwner(t *testing.T) {
	var gotOwner int64
	bikes := &stubBikeService{
		listFn: func(_ context.Context, ownerID int64) ([]services.Bike, error) {
			gotOwner = ownerID
			return nil, nil
		},
	}
	router := newBikeTestRouter(bikes)

	rr := doJSON(t, router, http.MethodGet, "/bikes?owner_id=42", "staff-token", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotOwner != 42 {
		t.Fatalf("expected owner filter 42, got %d", gotOwner)
	}
}

func TestBikeHandlersListIgnoresOwnerFilterForCustomers(t *testing.T) {
	var gotOwner int64
	bikes := &stubBikeService{
		listFn: func(_ context.Context, ownerID int64) ([]services.Bike, error) {
			gotOwner = ownerID
			return []services.Bike{{ID: 4, OwnerID: ownerID}}, nil
		},
	}
	router := newBikeTestRouter(bikes)

	rr := doJSON(t, router, http.MethodGet, "/bikes?owner_id=42", "customer-token", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotOwner != 3 {
		t.Fatalf("expected caller's own id, got %d", gotOwner)
	}
}

func TestBikeHandlersGetHidesForeignBikes(t *testing.T) {
	bikes := &stubBikeService{
		getFn: func(_ context.Context, bikeID int64) (services.Bike, error) {
			return services.Bike{ID: bikeID, OwnerID: 99}, nil
		},
	}
	router := newBikeTestRouter(bikes)

	rr := doJSON(t, router, http.MethodGet, "/bikes/4", "customer-token", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign bike, got %d", rr.Code)
	}
}
