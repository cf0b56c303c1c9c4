package postgres

import (
	"context"
	"database/sql"

	domain "github.com/spokeworks/api/internal/domain"
)

// BikeRepository persists customer vehicles in the bikes table.
type BikeRepository struct {
	db *sql.DB
}

func (r *BikeRepository) Create(ctx context.Context, bike domain.Bike) (domain.Bike, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO bikes (owner_id, license_plate, model)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, license_plate, model, created_at
	`, bike.OwnerID, bike.LicensePlate, bike.Model)

	var saved domain.Bike
	if err := row.Scan(&saved.ID, &saved.OwnerID, &saved.LicensePlate, &saved.Model, &saved.CreatedAt); err != nil {
		return domain.Bike{}, WrapError("postgres: insert bike", err)
	}
	return saved, nil
}

func (r *BikeRepository) FindByID(ctx context.Context, bikeID int64) (domain.Bike, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, owner_id, license_plate, model, created_at
		FROM bikes
		WHERE id = $1
	`, bikeID)

	var bike domain.Bike
	if err := row.Scan(&bike.ID, &bike.OwnerID, &bike.LicensePlate, &bike.Model, &bike.CreatedAt); err != nil {
		return domain.Bike{}, WrapError("postgres: find bike", err)
	}
	return bike, nil
}

func (r *BikeRepository) ListForOwner(ctx context.Context, ownerID int64) ([]domain.Bike, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
		SELECT id, owner_id, license_plate, model, created_at
		FROM bikes
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, WrapError("postgres: list bikes", err)
	}
	defer func() { _ = rows.Close() }()

	bikes := []domain.Bike{}
	for rows.Next() {
		var bike domain.Bike
		if err := rows.Scan(&bike.ID, &bike.OwnerID, &bike.LicensePlate, &bike.Model, &bike.CreatedAt); err != nil {
			return nil, WrapError("postgres: list bikes", err)
		}
		bikes = append(bikes, bike)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError("postgres: list bikes", err)
	}
	return bikes, nil
}

// HealthRepository reports database reachability for readiness checks.
type HealthRepository struct {
	db *sql.DB
}

func (r *HealthRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return WrapError("postgres: ping", err)
	}
	return nil
}
