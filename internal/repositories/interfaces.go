package repositories

import (
	"context"

	domain "github.com/spokeworks/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Users() UserRepository
	Bikes() BikeRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists service orders and provides the guarded update
// primitives the settlement workflow relies on.
type OrderRepository interface {
	// Create inserts the order and returns it with its assigned ID.
	Create(ctx context.Context, order domain.ServiceOrder, creatorID int64) (domain.ServiceOrder, error)
	Update(ctx context.Context, order domain.ServiceOrder) error
	// UpdateIfStatus persists the order only while its stored status still
	// equals expected, returning a conflict error otherwise.
	UpdateIfStatus(ctx context.Context, order domain.ServiceOrder, expected domain.OrderStatus) error
	FindByID(ctx context.Context, orderID int64) (domain.ServiceOrder, error)
	// FindByIDForUpdate locks the row for the duration of the surrounding
	// transaction. Outside a transaction it behaves like FindByID.
	FindByIDForUpdate(ctx context.Context, orderID int64) (domain.ServiceOrder, error)
	ListAll(ctx context.Context) ([]domain.ServiceOrder, error)
	ListForCustomer(ctx context.Context, customerID int64) ([]domain.ServiceOrder, error)
}

// UserRepository stores accounts and credentials.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID int64) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// BikeRepository stores customer vehicles referenced by service orders.
type BikeRepository interface {
	Create(ctx context.Context, bike domain.Bike) (domain.Bike, error)
	FindByID(ctx context.Context, bikeID int64) (domain.Bike, error)
	ListForOwner(ctx context.Context, ownerID int64) ([]domain.Bike, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
