package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/repositories"
)

var (
	// ErrBikeInvalidInput signals the caller provided invalid vehicle data.
	ErrBikeInvalidInput = errors.New("bike: invalid input")
	// ErrBikeNotFound indicates the vehicle could not be located.
	ErrBikeNotFound = errors.New("bike: not found")
	// ErrBikeConflict indicates a duplicate licence plate for the owner.
	ErrBikeConflict = errors.New("bike: conflict")
)

// BikeServiceDeps bundles collaborators required to construct the bike service.
type BikeServiceDeps struct {
	Bikes  repositories.BikeRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type bikeService struct {
	bikes  repositories.BikeRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewBikeService wires dependencies into a concrete BikeService implementation.
func NewBikeService(deps BikeServiceDeps) (BikeService, error) {
	if deps.Bikes == nil {
		return nil, errors.New("bike service: bike repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &bikeService{
		bikes: deps.Bikes,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *bikeService) RegisterBike(ctx context.Context, cmd RegisterBikeCommand) (Bike, error) {
	if cmd.OwnerID <= 0 {
		return Bike{}, fmt.Errorf("%w: owner id is required", ErrBikeInvalidInput)
	}
	plate := strings.ToUpper(strings.TrimSpace(cmd.LicensePlate))
	if plate == "" {
		return Bike{}, fmt.Errorf("%w: licence plate is required", ErrBikeInvalidInput)
	}

	record := domain.Bike{
		OwnerID:      cmd.OwnerID,
		LicensePlate: plate,
		Model:        strings.TrimSpace(cmd.Model),
		CreatedAt:    s.clock(),
	}

	created, err := s.bikes.Create(ctx, record)
	if err != nil {
		return Bike{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "bike.registered", map[string]any{
		"bike_id":  created.ID,
		"owner_id": created.OwnerID,
	})

	return toBike(created), nil
}

func (s *bikeService) GetBike(ctx context.Context, bikeID int64) (Bike, error) {
	if bikeID <= 0 {
		return Bike{}, fmt.Errorf("%w: bike id is required", ErrBikeInvalidInput)
	}
	record, err := s.bikes.FindByID(ctx, bikeID)
	if err != nil {
		return Bike{}, s.mapRepositoryError(err)
	}
	return toBike(record), nil
}

func (s *bikeService) ListBikes(ctx context.Context, ownerID int64) ([]Bike, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner id is required", ErrBikeInvalidInput)
	}
	records, err := s.bikes.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	bikes := make([]Bike, 0, len(records))
	for _, record := range records {
		bikes = append(bikes, toBike(record))
	}
	return bikes, nil
}

func (s *bikeService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrBikeNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrBikeConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrPersistence, err)
		}
	}

	return err
}

func toBike(record domain.Bike) Bike {
	return Bike{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		LicensePlate: record.LicensePlate,
		Model:        record.Model,
		CreatedAt:    record.CreatedAt,
	}
}
