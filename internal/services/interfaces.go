package services

import (
	"context"
	"time"
)

// Order is the transport-facing projection of a service order.
type Order struct {
	ID         int64
	BikeID     int64
	CustomerID int64
	Status     string
	TotalPrice int64
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateOrderCommand opens a new repair order. A nil TotalPrice defaults to zero.
type CreateOrderCommand struct {
	BikeID     int64
	CustomerID int64
	TotalPrice *int64
	ActorID    int64
}

// OrderActionCommand addresses a single order for a lifecycle transition.
type OrderActionCommand struct {
	OrderID int64
	ActorID int64
}

// UpdateOrderStatusCommand is the administrative overwrite: the status is applied
// without lifecycle guards and the price is corrected when provided.
type UpdateOrderStatusCommand struct {
	OrderID    int64
	Status     string
	TotalPrice *int64
	ActorID    int64
}

// OrderListFilter narrows listings to a single customer when set.
type OrderListFilter struct {
	CustomerID *int64
}

// OrderService exposes the order lifecycle workflows.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
	StartRepair(ctx context.Context, cmd OrderActionCommand) (Order, error)
	CompleteRepair(ctx context.Context, cmd OrderActionCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd OrderActionCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
}

// SettleOrderCommand requests settlement of an order against the payment gateway.
type SettleOrderCommand struct {
	OrderID  int64
	Token    string
	Currency string
	Provider string
	ActorID  int64
}

// SettlementResult reports a successful settlement.
type SettlementResult struct {
	OrderID       int64
	TransactionID string
	Status        string
}

// PaymentService orchestrates charging the gateway and committing the paid state.
type PaymentService interface {
	SettleOrder(ctx context.Context, cmd SettleOrderCommand) (SettlementResult, error)
}

// User is the transport-facing projection of an account. Credentials never leave the service.
type User struct {
	ID        int64
	Username  string
	Name      string
	Phone     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterUserCommand creates a customer account.
type RegisterUserCommand struct {
	Username string
	Password string
	Name     string
	Phone    string
}

// LoginCommand authenticates a user by credentials.
type LoginCommand struct {
	Username string
	Password string
}

// LoginResult carries the signed token and the authenticated user.
type LoginResult struct {
	Token string
	User  User
}

// PromoteUserCommand changes a user's role.
type PromoteUserCommand struct {
	UserID  int64
	Role    string
	ActorID int64
}

// UserService manages accounts, credentials, and roles.
type UserService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (User, error)
	Login(ctx context.Context, cmd LoginCommand) (LoginResult, error)
	Promote(ctx context.Context, cmd PromoteUserCommand) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Bike is the transport-facing projection of a customer vehicle.
type Bike struct {
	ID           int64
	OwnerID      int64
	LicensePlate string
	Model        string
	CreatedAt    time.Time
}

// RegisterBikeCommand records a vehicle for an owner.
type RegisterBikeCommand struct {
	OwnerID      int64
	LicensePlate string
	Model        string
}

// BikeService manages the vehicles that orders reference.
type BikeService interface {
	RegisterBike(ctx context.Context, cmd RegisterBikeCommand) (Bike, error)
	GetBike(ctx context.Context, bikeID int64) (Bike, error)
	ListBikes(ctx context.Context, ownerID int64) ([]Bike, error)
}
