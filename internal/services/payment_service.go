package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/notifications"
	"github.com/spokeworks/api/internal/payments"
	"github.com/spokeworks/api/internal/platform/observability"
	"github.com/spokeworks/api/internal/repositories"
)

const settlementStatusSuccess = "Success"

var (
	// ErrAlreadyPaid indicates the order was settled before this attempt committed.
	ErrAlreadyPaid = errors.New("payment: order already paid")
	// ErrPaymentFailed indicates the provider declined or left the charge pending.
	ErrPaymentFailed = errors.New("payment: charge failed")
	// ErrPaymentGateway indicates the provider could not be reached or errored.
	ErrPaymentGateway = errors.New("payment: gateway error")
	// ErrCustomerNotFound indicates the paying customer record is missing.
	ErrCustomerNotFound = errors.New("payment: customer not found")
)

// ChargeGateway selects a provider and executes a charge. *payments.Manager satisfies it.
type ChargeGateway interface {
	Charge(ctx context.Context, paymentCtx payments.PaymentContext, req payments.ChargeRequest) (payments.ChargeResult, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders     repositories.OrderRepository
	Users      repositories.UserRepository
	Gateway    ChargeGateway
	Notifier   notifications.Gateway
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Events     OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)

	// SettlementCurrency is used when the caller does not supply one.
	SettlementCurrency string
}

type paymentService struct {
	orders     repositories.OrderRepository
	users      repositories.UserRepository
	gateway    ChargeGateway
	notifier   notifications.Gateway
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
	currency   string
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("payment service: user repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: charge gateway is required")
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

	currency := strings.ToUpper(strings.TrimSpace(deps.SettlementCurrency))
	if currency == "" {
		currency = "THB"
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NoopGateway{}
	}

	return &paymentService{
		orders:     deps.Orders,
		users:      deps.Users,
		gateway:    deps.Gateway,
		notifier:   notifier,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:   deps.Events,
		logger:   logger,
		currency: currency,
	}, nil
}

// SettleOrder charges the gateway for the order total and commits the paid
// state in one transaction. The row lock taken by FindByIDForUpdate plus the
// compare-and-swap on the booked-side status close the double-charge window:
// a concurrent settlement either sees paid before charging or loses the swap.
func (s *paymentService) SettleOrder(ctx context.Context, cmd SettleOrderCommand) (SettlementResult, error) {
	if cmd.OrderID <= 0 {
		return SettlementResult{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		return SettlementResult{}, fmt.Errorf("%w: payment token is required", ErrOrderInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	var (
		order          domain.ServiceOrder
		charge         payments.ChargeResult
		previousStatus domain.OrderStatus
	)

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		record, err := s.orders.FindByIDForUpdate(txCtx, cmd.OrderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if record.Status == domain.OrderStatusPaid {
			return fmt.Errorf("%w: order %d", ErrAlreadyPaid, record.ID)
		}
		previous := record.Status

		result, err := s.gateway.Charge(txCtx, payments.PaymentContext{
			PreferredProvider: cmd.Provider,
			Currency:          currency,
		}, payments.ChargeRequest{
			Amount:         record.TotalPrice,
			Currency:       currency,
			Token:          token,
			Description:    fmt.Sprintf("Service order #%d", record.ID),
			IdempotencyKey: fmt.Sprintf("order-%d", record.ID),
			Metadata: map[string]string{
				"orderId": strconv.FormatInt(record.ID, 10),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentGateway, err)
		}
		if result.Status != payments.StatusSucceeded {
			reason := result.FailureMessage
			if reason == "" {
				reason = string(result.Status)
			}
			return fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
		}

		record.MarkPaid()
		record.UpdatedAt = s.now()
		if err := s.orders.UpdateIfStatus(txCtx, record, previous); err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsConflict() {
				return fmt.Errorf("%w: order %d", ErrAlreadyPaid, record.ID)
			}
			// The provider kept the charge. Reconciliation is manual.
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		order = record
		charge = result
		previousStatus = previous
		return nil
	})
	if err != nil {
		outcome := settlementOutcome(err)
		observability.ObserveSettlement(outcome)
		s.logger(ctx, "payment.settlement.failed", map[string]any{
			"order_id": cmd.OrderID,
			"outcome":  outcome,
			"error":    err.Error(),
		})
		return SettlementResult{}, err
	}

	observability.ObserveSettlement("success")
	s.logger(ctx, "payment.settlement.committed", map[string]any{
		"order_id":       order.ID,
		"transaction_id": charge.TransactionID,
		"provider":       charge.Provider,
		"amount":         charge.Amount,
		"currency":       charge.Currency,
	})
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventPaid,
		OrderID:        order.ID,
		PreviousStatus: string(previousStatus),
		CurrentStatus:  string(order.Status),
		ActorID:        cmd.ActorID,
		OccurredAt:     s.now(),
		Metadata: map[string]any{
			"transactionId": charge.TransactionID,
			"provider":      charge.Provider,
			"amount":        charge.Amount,
			"currency":      charge.Currency,
		},
	})

	customer, err := s.users.FindByID(ctx, order.CustomerID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return SettlementResult{}, fmt.Errorf("%w: user %d", ErrCustomerNotFound, order.CustomerID)
		}
		return SettlementResult{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, customer, order)

	return SettlementResult{
		OrderID:       order.ID,
		TransactionID: charge.TransactionID,
		Status:        settlementStatusSuccess,
	}, nil
}

func (s *paymentService) notify(ctx context.Context, customer domain.User, order domain.ServiceOrder) {
	recipient := strings.TrimSpace(customer.Phone)
	if recipient == "" {
		recipient = customer.Username
	}
	msg := notifications.Message{
		Recipient: recipient,
		Title:     "Payment received",
		Body:      fmt.Sprintf("Payment for order #%d successful. Total: %s", order.ID, formatMinorUnits(order.TotalPrice, s.currency)),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger(ctx, "payment.notification.failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func (s *paymentService) mapRepositoryError(err error) error {
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

func (s *paymentService) now() time.Time {
	return s.clock()
}

func settlementOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrPaymentGateway):
		return "gateway_error"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}

// formatMinorUnits renders satang as a baht amount for human-facing messages.
func formatMinorUnits(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, currency)
}
