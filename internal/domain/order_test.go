package domain

import (
	"errors"
	"testing"
)

func TestNewServiceOrderDefaultsToBooked(t *testing.T) {
	order, err := NewServiceOrder(7, 12, 0)
	if err != nil {
		t.Fatalf("NewServiceOrder returned error: %v", err)
	}
	if order.Status != OrderStatusBooked {
		t.Fatalf("expected booked status, got %q", order.Status)
	}
	if order.TotalPrice != 0 {
		t.Fatalf("expected zero price, got %d", order.TotalPrice)
	}
}

func TestNewServiceOrderRejectsNegativePrice(t *testing.T) {
	if _, err := NewServiceOrder(7, 12, -500); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
}

func TestStartRepairOnlyFromBooked(t *testing.T) {
	order := ServiceOrder{Status: OrderStatusBooked}
	if err := order.StartRepair(); err != nil {
		t.Fatalf("StartRepair from booked returned error: %v", err)
	}
	if order.Status != OrderStatusRepairing {
		t.Fatalf("expected repairing status, got %q", order.Status)
	}

	for _, status := range []OrderStatus{OrderStatusRepairing, OrderStatusCompleted, OrderStatusCancelled, OrderStatusPaid} {
		order := ServiceOrder{Status: status}
		if err := order.StartRepair(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("StartRepair from %q: expected ErrInvalidTransition, got %v", status, err)
		}
		if order.Status != status {
			t.Fatalf("StartRepair from %q mutated status to %q", status, order.Status)
		}
	}
}

func TestCompleteRepairOnlyFromRepairing(t *testing.T) {
	order := ServiceOrder{Status: OrderStatusRepairing}
	if err := order.CompleteRepair(); err != nil {
		t.Fatalf("CompleteRepair from repairing returned error: %v", err)
	}
	if order.Status != OrderStatusCompleted {
		t.Fatalf("expected completed status, got %q", order.Status)
	}

	for _, status := range []OrderStatus{OrderStatusBooked, OrderStatusCompleted, OrderStatusCancelled, OrderStatusPaid} {
		order := ServiceOrder{Status: status}
		if err := order.CompleteRepair(); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("CompleteRepair from %q: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestCancelForbiddenOnlyFromCompleted(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusBooked, OrderStatusRepairing, OrderStatusCancelled, OrderStatusPaid} {
		order := ServiceOrder{Status: status}
		if err := order.Cancel(); err != nil {
			t.Fatalf("Cancel from %q returned error: %v", status, err)
		}
		if order.Status != OrderStatusCancelled {
			t.Fatalf("Cancel from %q left status %q", status, order.Status)
		}
	}

	order := ServiceOrder{Status: OrderStatusCompleted}
	if err := order.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if order.Status != OrderStatusCompleted {
		t.Fatalf("Cancel mutated a completed order to %q", order.Status)
	}
}

func TestSetTotalPriceRejectsNegative(t *testing.T) {
	order := ServiceOrder{TotalPrice: 1000}
	if err := order.SetTotalPrice(-1); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
	if order.TotalPrice != 1000 {
		t.Fatalf("price mutated on rejected update: %d", order.TotalPrice)
	}
	if err := order.SetTotalPrice(2500); err != nil {
		t.Fatalf("SetTotalPrice returned error: %v", err)
	}
	if order.TotalPrice != 2500 {
		t.Fatalf("expected 2500, got %d", order.TotalPrice)
	}
}
