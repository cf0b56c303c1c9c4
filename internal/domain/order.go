package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition indicates a status change that the order lifecycle does not permit.
	ErrInvalidTransition = errors.New("domain: invalid status transition")
	// ErrNegativePrice indicates an attempt to set a price below zero.
	ErrNegativePrice = errors.New("domain: total price must not be negative")
)

// OrderStatus enumerates valid lifecycle states for service orders.
type OrderStatus string

const (
	// OrderStatusBooked indicates the order has been accepted and awaits the workshop.
	OrderStatusBooked OrderStatus = "booked"
	// OrderStatusRepairing indicates the repair work is in progress.
	OrderStatusRepairing OrderStatus = "repairing"
	// OrderStatusCompleted indicates the repair work has finished.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled indicates the order was abandoned before completion.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusPaid indicates the order has been settled with the payment provider.
	OrderStatusPaid OrderStatus = "paid"
)

// KnownOrderStatus reports whether the value is one of the defined lifecycle states.
func KnownOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusBooked, OrderStatusRepairing, OrderStatusCompleted, OrderStatusCancelled, OrderStatusPaid:
		return true
	}
	return false
}

// ServiceOrder is the aggregate for a single repair job. Prices are integer
// minor units (satang). A zero ID marks an order not yet persisted.
type ServiceOrder struct {
	ID         int64
	BikeID     int64
	CustomerID int64
	Status     OrderStatus
	TotalPrice int64
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewServiceOrder builds a booked order for the given bike and customer.
func NewServiceOrder(bikeID, customerID, totalPrice int64) (ServiceOrder, error) {
	if totalPrice < 0 {
		return ServiceOrder{}, fmt.Errorf("%w: %d", ErrNegativePrice, totalPrice)
	}
	return ServiceOrder{
		BikeID:     bikeID,
		CustomerID: customerID,
		Status:     OrderStatusBooked,
		TotalPrice: totalPrice,
	}, nil
}

// StartRepair moves a booked order into repair.
func (o *ServiceOrder) StartRepair() error {
	if o.Status != OrderStatusBooked {
		return fmt.Errorf("%w: cannot start repair from %q", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusRepairing
	return nil
}

// CompleteRepair finishes an order that is currently under repair.
func (o *ServiceOrder) CompleteRepair() error {
	if o.Status != OrderStatusRepairing {
		return fmt.Errorf("%w: cannot complete repair from %q", ErrInvalidTransition, o.Status)
	}
	o.Status = OrderStatusCompleted
	return nil
}

// Cancel abandons the order. Completed orders cannot be cancelled.
func (o *ServiceOrder) Cancel() error {
	if o.Status == OrderStatusCompleted {
		return fmt.Errorf("%w: cannot cancel a completed order", ErrInvalidTransition)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// MarkPaid records settlement. The already-paid guard lives in the settlement
// workflow, not here, so administrative overwrites can also reach this state.
func (o *ServiceOrder) MarkPaid() {
	o.Status = OrderStatusPaid
}

// SetTotalPrice replaces the order total, rejecting negative amounts.
func (o *ServiceOrder) SetTotalPrice(price int64) error {
	if price < 0 {
		return fmt.Errorf("%w: %d", ErrNegativePrice, price)
	}
	o.TotalPrice = price
	return nil
}
