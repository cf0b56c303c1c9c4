package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/platform/observability"
	"github.com/spokeworks/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventPaid          = "order.paid"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the lifecycle forbids the requested transition.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent modification or duplicate data.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrPersistence indicates the order could not be stored.
	ErrPersistence = errors.New("order: persistence failure")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        int64
	PreviousStatus string
	CurrentStatus  string
	ActorID        int64
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Events     OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if cmd.BikeID <= 0 {
		return Order{}, fmt.Errorf("%w: bike id is required", ErrOrderInvalidInput)
	}
	if cmd.CustomerID <= 0 {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}

	var price int64
	if cmd.TotalPrice != nil {
		price = *cmd.TotalPrice
	}

	order, err := domain.NewServiceOrder(cmd.BikeID, cmd.CustomerID, price)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}

	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now

	created, err := s.orders.Create(ctx, order, cmd.ActorID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"order_id":    created.ID,
		"bike_id":     created.BikeID,
		"customer_id": created.CustomerID,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       created.ID,
		CurrentStatus: string(created.Status),
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"bikeId":     created.BikeID,
			"customerId": created.CustomerID,
			"totalPrice": created.TotalPrice,
		},
	})

	return toOrder(created), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	record, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return toOrder(record), nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	var (
		records []domain.ServiceOrder
		err     error
	)
	if filter.CustomerID != nil {
		records, err = s.orders.ListForCustomer(ctx, *filter.CustomerID)
	} else {
		records, err = s.orders.ListAll(ctx)
	}
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	orders := make([]Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, toOrder(record))
	}
	return orders, nil
}

func (s *orderService) StartRepair(ctx context.Context, cmd OrderActionCommand) (Order, error) {
	return s.transition(ctx, cmd, func(order *domain.ServiceOrder) error {
		return order.StartRepair()
	})
}

func (s *orderService) CompleteRepair(ctx context.Context, cmd OrderActionCommand) (Order, error) {
	return s.transition(ctx, cmd, func(order *domain.ServiceOrder) error {
		return order.CompleteRepair()
	})
}

func (s *orderService) CancelOrder(ctx context.Context, cmd OrderActionCommand) (Order, error) {
	return s.transition(ctx, cmd, func(order *domain.ServiceOrder) error {
		return order.Cancel()
	})
}

// transition applies an entity lifecycle guard and persists the result with a
// compare-and-swap on the previous status so concurrent writers lose cleanly.
func (s *orderService) transition(ctx context.Context, cmd OrderActionCommand, apply func(*domain.ServiceOrder) error) (Order, error) {
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	record, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	previous := record.Status
	if err := apply(&record); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidState, err)
		}
		return Order{}, err
	}

	now := s.now()
	record.UpdatedAt = now
	if err := s.orders.UpdateIfStatus(ctx, record, previous); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        record.ID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(record.Status),
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})
	observability.ObserveOrderTransition(string(record.Status))

	return toOrder(record), nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if cmd.OrderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status := domain.OrderStatus(cmd.Status)
	if !domain.KnownOrderStatus(status) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	record, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	previous := record.Status
	record.Status = status
	if cmd.TotalPrice != nil {
		if err := record.SetTotalPrice(*cmd.TotalPrice); err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
	}

	now := s.now()
	record.UpdatedAt = now
	if err := s.orders.Update(ctx, record); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.status.overridden", map[string]any{
		"order_id": record.ID,
		"from":     string(previous),
		"to":       string(record.Status),
		"actor_id": cmd.ActorID,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        record.ID,
		PreviousStatus: string(previous),
		CurrentStatus:  string(record.Status),
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
		Metadata:       map[string]any{"override": true},
	})
	observability.ObserveOrderTransition(string(record.Status))

	return toOrder(record), nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: repository unavailable: %v", ErrPersistence, err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func toOrder(record domain.ServiceOrder) Order {
	return Order{
		ID:         record.ID,
		BikeID:     record.BikeID,
		CustomerID: record.CustomerID,
		Status:     string(record.Status),
		TotalPrice: record.TotalPrice,
		CreatedBy:  record.CreatedBy,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
