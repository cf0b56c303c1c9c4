package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/spokeworks/api/internal/domain"
)

type stubBikeRepo struct {
	createFn func(context.Context, domain.Bike) (domain.Bike, error)
	findFn   func(context.Context, int64) (domain.Bike, error)
	listFn   func(context.Context, int64) ([]domain.Bike, error)
}

func (s *stubBikeRepo) Create(ctx context.Context, bike domain.Bike) (domain.Bike, error) {
	if s.createFn != nil {
		return s.createFn(ctx, bike)
	}
	bike.ID = 1
	return bike, nil
}

func (s *stubBikeRepo) FindByID(ctx context.Context, bikeID int64) (domain.Bike, error) {
	if s.findFn != nil {
		return s.findFn(ctx, bikeID)
	}
	return domain.Bike{}, errors.New("not implemented")
}

func (s *stubBikeRepo) ListForOwner(ctx context.Context, ownerID int64) ([]domain.Bike, error) {
	if s.listFn != nil {
		return s.listFn(ctx, ownerID)
	}
	return nil, nil
}

func newTestBikeService(t *testing.T, deps BikeServiceDeps) BikeService {
	t.Helper()
	svc, err := NewBikeService(deps)
	if err != nil {
		t.Fatalf("NewBikeService: %v", err)
	}
	return svc
}

func TestBikeServiceRegisterNormalisesPlate(t *testing.T) {
	var stored domain.Bike
	repo := &stubBikeRepo{
		createFn: func(_ context.Context, bike domain.Bike) (domain.Bike, error) {
			stored = bike
			bike.ID = 4
			return bike, nil
		},
	}
	svc := newTestBikeService(t, BikeServiceDeps{Bikes: repo})

	bike, err := svc.RegisterBike(context.Background(), RegisterBikeCommand{OwnerID: 3, LicensePlate: " kk-1234 ", Model: "Honda Wave"})
	if err != nil {
		t.Fatalf("RegisterBike: %v", err)
	}

	if stored.LicensePlate != "KK-1234" {
		t.Fatalf("expected upper-cased plate, got %q", stored.LicensePlate)
	}
	if bike.ID != 4 || bike.OwnerID != 3 {
		t.Fatalf("unexpected projection: %+v", bike)
	}
}

func TestBikeServiceRegisterRequiresPlate(t *testing.T) {
	svc := newTestBikeService(t, BikeServiceDeps{Bikes: &stubBikeRepo{}})

	if _, err := svc.RegisterBike(context.Background(), RegisterBikeCommand{OwnerID: 3}); !errors.Is(err, ErrBikeInvalidInput) {
		t.Fatalf("expected ErrBikeInvalidInput, got %v", err)
	}
}

func TestBikeServiceGetBikeNotFound(t *testing.T) {
	repo := &stubBikeRepo{
		findFn: func(context.Context, int64) (domain.Bike, error) {
			return domain.Bike{}, repoError{message: "missing", notFound: true}
		},
	}
	svc := newTestBikeService(t, BikeServiceDeps{Bikes: repo})

	if _, err := svc.GetBike(context.Background(), 404); !errors.Is(err, ErrBikeNotFound) {
		t.Fatalf("expected ErrBikeNotFound, got %v", err)
	}
}

func TestBikeServiceListBikesForOwner(t *testing.T) {
	var requested int64
	repo := &stubBikeRepo{
		listFn: func(_ context.Context, ownerID int64) ([]domain.Bike, error) {
			requested = ownerID
			return []domain.Bike{{ID: 1, OwnerID: ownerID, LicensePlate: "KK-1234"}}, nil
		},
	}
	svc := newTestBikeService(t, BikeServiceDeps{Bikes: repo})

	bikes, err := svc.ListBikes(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListBikes: %v", err)
	}
	if requested != 3 || len(bikes) != 1 {
		t.Fatalf("unexpected listing: requested=%d bikes=%+v", requested, bikes)
	}
}
