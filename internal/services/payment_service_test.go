package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/spokeworks/api/internal/domain"
	"github.com/spokeworks/api/internal/notifications"
	"github.com/spokeworks/api/internal/payments"
)

type stubUserRepo struct {
	createFn   func(context.Context, domain.User) (domain.User, error)
	updateFn   func(context.Context, domain.User) error
	findFn     func(context.Context, int64) (domain.User, error)
	findNameFn func(context.Context, string) (domain.User, error)
	listFn     func(context.Context) ([]domain.User, error)
}

func (s *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if s.createFn != nil {
		return s.createFn(ctx, user)
	}
	user.ID = 1
	return user, nil
}

func (s *stubUserRepo) Update(ctx context.Context, user domain.User) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, user)
	}
	return nil
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID int64) (domain.User, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if s.findNameFn != nil {
		return s.findNameFn(ctx, username)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserRepo) List(ctx context.Context) ([]domain.User, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

type stubGateway struct {
	chargeFn func(context.Context, payments.PaymentContext, payments.ChargeRequest) (payments.ChargeResult, error)
	calls    int
}

func (s *stubGateway) Charge(ctx context.Context, paymentCtx payments.PaymentContext, req payments.ChargeRequest) (payments.ChargeResult, error) {
	s.calls++
	if s.chargeFn != nil {
		return s.chargeFn(ctx, paymentCtx, req)
	}
	return payments.ChargeResult{TransactionID: "txn_1", Status: payments.StatusSucceeded, Amount: req.Amount, Currency: req.Currency}, nil
}

type stubNotifier struct {
	sendFn func(context.Context, notifications.Message) error
	sent   []notifications.Message
}

func (s *stubNotifier) Send(ctx context.Context, msg notifications.Message) error {
	s.sent = append(s.sent, msg)
	if s.sendFn != nil {
		return s.sendFn(ctx, msg)
	}
	return nil
}

type recordingUnitOfWork struct {
	calls int
}

func (u *recordingUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	u.calls++
	return fn(ctx)
}

func paidCustomer() domain.User {
	return domain.User{ID: 3, Username: "somchai", Name: "Somchai", Phone: "+66812345678", Role: domain.RoleCustomer}
}

func newTestPaymentService(t *testing.T, deps PaymentServiceDeps) PaymentService {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	}
	svc, err := NewPaymentService(deps)
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}
	return svc
}

func TestPaymentServiceSettleOrderHappyPath(t *testing.T) {
	var lockedID int64
	var swapped domain.ServiceOrder
	var expected domain.OrderStatus
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			lockedID = orderID
			return domain.ServiceOrder{ID: orderID, CustomerID: 3, Status: domain.OrderStatusCompleted, TotalPrice: 150000}, nil
		},
		updateIfStatusFn: func(_ context.Context, order domain.ServiceOrder, exp domain.OrderStatus) error {
			swapped = order
			expected = exp
			return nil
		},
	}
	users := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return paidCustomer(), nil
		},
	}
	var chargeReq payments.ChargeRequest
	gateway := &stubGateway{
		chargeFn: func(_ context.Context, _ payments.PaymentContext, req payments.ChargeRequest) (payments.ChargeResult, error) {
			chargeReq = req
			return payments.ChargeResult{TransactionID: "chrg_test_1", Status: payments.StatusSucceeded, Amount: req.Amount, Currency: req.Currency}, nil
		},
	}
	notifier := &stubNotifier{}
	unit := &recordingUnitOfWork{}
	events := &captureOrderEvents{}

	svc := newTestPaymentService(t, PaymentServiceDeps{
		Orders: orders, Users: users, Gateway: gateway, Notifier: notifier,
		UnitOfWork: unit, Events: events, SettlementCurrency: "THB",
	})

	result, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa", ActorID: 3})
	if err != nil {
		t.Fatalf("SettleOrder: %v", err)
	}

	if unit.calls != 1 {
		t.Fatalf("expected one transaction, got %d", unit.calls)
	}
	if lockedID != 11 {
		t.Fatalf("expected locked read of order 11, got %d", lockedID)
	}
	if chargeReq.Amount != 150000 || chargeReq.Currency != "THB" {
		t.Fatalf("unexpected charge request: %+v", chargeReq)
	}
	if chargeReq.IdempotencyKey != "order-11" {
		t.Fatalf("unexpected idempotency key %q", chargeReq.IdempotencyKey)
	}
	if swapped.Status != domain.OrderStatusPaid || expected != domain.OrderStatusCompleted {
		t.Fatalf("expected paid swap on completed, got status=%q expected=%q", swapped.Status, expected)
	}
	if result.OrderID != 11 || result.TransactionID != "chrg_test_1" || result.Status != "Success" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if !strings.Contains(notifier.sent[0].Body, "order #11") || !strings.Contains(notifier.sent[0].Body, "1500.00 THB") {
		t.Fatalf("unexpected notification body %q", notifier.sent[0].Body)
	}
	if len(events.events) != 1 || events.events[0].Type != orderEventPaid {
		t.Fatalf("expected order.paid event, got %+v", events.events)
	}
}

func TestPaymentServiceSettleOrderEventCarriesPreSettlementStatus(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, CustomerID: 3, Status: domain.OrderStatusBooked, TotalPrice: 50000}, nil
		},
	}
	users := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return paidCustomer(), nil
		},
	}
	events := &captureOrderEvents{}

	svc := newTestPaymentService(t, PaymentServiceDeps{
		Orders: orders, Users: users, Gateway: &stubGateway{}, Notifier: &stubNotifier{},
		Events: events, SettlementCurrency: "THB",
	})

	if _, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 7, Token: "tok_visa", ActorID: 3}); err != nil {
		t.Fatalf("SettleOrder: %v", err)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(events.events))
	}
	event := events.events[0]
	if event.PreviousStatus != string(domain.OrderStatusBooked) {
		t.Fatalf("expected previous status %q, got %q", domain.OrderStatusBooked, event.PreviousStatus)
	}
	if event.CurrentStatus != string(domain.OrderStatusPaid) {
		t.Fatalf("expected current status %q, got %q", domain.OrderStatusPaid, event.CurrentStatus)
	}
}

func TestPaymentServiceSettleOrderAlreadyPaidSkipsGateway(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusPaid}, nil
		},
	}
	gateway := &stubGateway{}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: gateway})

	_, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if gateway.calls != 0 {
		t.Fatalf("expected gateway untouched, got %d calls", gateway.calls)
	}
}

func TestPaymentServiceSettleOrderGatewayErrorLeavesOrderUntouched(t *testing.T) {
	persisted := false
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
		updateIfStatusFn: func(context.Context, domain.ServiceOrder, domain.OrderStatus) error {
			persisted = true
			return nil
		},
	}
	gateway := &stubGateway{
		chargeFn: func(context.Context, payments.PaymentContext, payments.ChargeRequest) (payments.ChargeResult, error) {
			return payments.ChargeResult{}, errors.New("connection refused")
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: gateway})

	_, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}
	if persisted {
		t.Fatal("expected no persistence after gateway error")
	}
}

func TestPaymentServiceSettleOrderDeclinedCharge(t *testing.T) {
	persisted := false
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
		updateIfStatusFn: func(context.Context, domain.ServiceOrder, domain.OrderStatus) error {
			persisted = true
			return nil
		},
	}
	gateway := &stubGateway{
		chargeFn: func(context.Context, payments.PaymentContext, payments.ChargeRequest) (payments.ChargeResult, error) {
			return payments.ChargeResult{TransactionID: "chrg_declined", Status: payments.StatusFailed, FailureMessage: "insufficient funds"}, nil
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: gateway})

	_, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient funds") {
		t.Fatalf("expected failure reason in error, got %v", err)
	}
	if persisted {
		t.Fatal("expected no persistence for declined charge")
	}
}

func TestPaymentServiceSettleOrderPendingChargeIsFailure(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
	}
	gateway := &stubGateway{
		chargeFn: func(context.Context, payments.PaymentContext, payments.ChargeRequest) (payments.ChargeResult, error) {
			return payments.ChargeResult{TransactionID: "chrg_pending", Status: payments.StatusPending}, nil
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: gateway})

	if _, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"}); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed for pending, got %v", err)
	}
}

func TestPaymentServiceSettleOrderLostSwapReportsAlreadyPaid(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
		updateIfStatusFn: func(context.Context, domain.ServiceOrder, domain.OrderStatus) error {
			return repoError{message: "status moved", conflict: true}
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: &stubGateway{}})

	if _, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"}); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid on lost swap, got %v", err)
	}
}

func TestPaymentServiceSettleOrderPersistenceFailureKeepsCharge(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
		updateIfStatusFn: func(context.Context, domain.ServiceOrder, domain.OrderStatus) error {
			return repoError{message: "connection reset", unavailable: true}
		},
	}
	gateway := &stubGateway{}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: gateway})

	_, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("expected the charge to have been attempted once, got %d", gateway.calls)
	}
}

func TestPaymentServiceSettleOrderMissingCustomerAfterCommit(t *testing.T) {
	committed := false
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, CustomerID: 99, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
		updateIfStatusFn: func(context.Context, domain.ServiceOrder, domain.OrderStatus) error {
			committed = true
			return nil
		},
	}
	users := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return domain.User{}, repoError{message: "missing", notFound: true}
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: users, Gateway: &stubGateway{}})

	_, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if !committed {
		t.Fatal("expected the paid state to stay committed")
	}
}

func TestPaymentServiceSettleOrderNotificationFailureIsSwallowed(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(_ context.Context, orderID int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{ID: orderID, CustomerID: 3, Status: domain.OrderStatusCompleted, TotalPrice: 5000}, nil
		},
	}
	users := &stubUserRepo{
		findFn: func(context.Context, int64) (domain.User, error) {
			return paidCustomer(), nil
		},
	}
	notifier := &stubNotifier{
		sendFn: func(context.Context, notifications.Message) error {
			return errors.New("line api 500")
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: users, Gateway: &stubGateway{}, Notifier: notifier})

	result, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "tok_visa"})
	if err != nil {
		t.Fatalf("expected success despite notification failure, got %v", err)
	}
	if result.Status != "Success" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPaymentServiceSettleOrderNotFound(t *testing.T) {
	orders := &stubOrderRepo{
		findForUpdateFn: func(context.Context, int64) (domain.ServiceOrder, error) {
			return domain.ServiceOrder{}, repoError{message: "missing", notFound: true}
		},
	}
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: orders, Users: &stubUserRepo{}, Gateway: &stubGateway{}})

	if _, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 404, Token: "tok_visa"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestPaymentServiceSettleOrderRequiresToken(t *testing.T) {
	svc := newTestPaymentService(t, PaymentServiceDeps{Orders: &stubOrderRepo{}, Users: &stubUserRepo{}, Gateway: &stubGateway{}})

	if _, err := svc.SettleOrder(context.Background(), SettleOrderCommand{OrderID: 11, Token: "  "}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}
