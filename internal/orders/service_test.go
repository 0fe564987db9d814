package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/escrow"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrdersRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.PaymentReference != nil && *order.PaymentReference == reference {
			cp := *order
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) ListByCheckoutGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.CheckoutGroupID == groupID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (f *fakeOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.BuyerID == buyerID {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (f *fakeOrdersRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.VendorID == vendorID {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (f *fakeOrdersRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	order, ok := f.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	if ps, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		order.PaymentStatus = ps
	}
	if channel, ok := updates["payment_channel"].(string); ok {
		order.PaymentChannel = &channel
	}
	if tracking, ok := updates["tracking_number"].(string); ok {
		order.TrackingNumber = &tracking
	}
	return true, nil
}

func (f *fakeOrdersRepo) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error {
	order, ok := f.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.PaymentReference = &reference
	return nil
}

func (f *fakeOrdersRepo) MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, ok := f.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = enums.PaymentStatusRefunded
	return nil
}

type fakeGateway struct {
	initResult   *paystack.InitializeResult
	initErr      error
	verifyResult *paystack.VerifyResult
	verifyErr    error
	verifyCalls  int
}

func (f *fakeGateway) InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.initResult != nil {
		return f.initResult, nil
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/abc123",
		AccessCode:       "abc123",
		Reference:        params.Reference,
	}, nil
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyResult, nil
}

type fakeLedger struct {
	held     []escrow.HoldInput
	refunded []escrow.RefundInput
	escrows  map[uuid.UUID]*models.EscrowTransaction
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{escrows: map[uuid.UUID]*models.EscrowTransaction{}}
}

func (f *fakeLedger) Hold(ctx context.Context, tx *gorm.DB, input escrow.HoldInput) (*models.EscrowTransaction, error) {
	f.held = append(f.held, input)
	e := &models.EscrowTransaction{
		ID:         uuid.New(),
		OrderID:    input.OrderID,
		AmountKobo: input.AmountKobo,
		Status:     enums.EscrowStatusHeld,
	}
	f.escrows[input.OrderID] = e
	return e, nil
}

func (f *fakeLedger) Refund(ctx context.Context, input escrow.RefundInput) error {
	f.refunded = append(f.refunded, input)
	return nil
}

func (f *fakeLedger) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	e, ok := f.escrows[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
	}
	return e, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
}

func newTestService(t *testing.T, repo *fakeOrdersRepo, ledger *fakeLedger, gw *fakeGateway) Service {
	t.Helper()
	svc, err := NewService(repo, ledger, gw, fakeTxRunner{}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func pendingOrder(repo *fakeOrdersRepo, totalKobo int64) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "SOKO-TEST000001",
		BuyerID:       uuid.New(),
		VendorID:      uuid.New(),
		TotalKobo:     totalKobo,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
	}
	repo.orders[order.ID] = order
	return order
}

func TestInitiatePayment(t *testing.T) {
	repo := newFakeOrdersRepo()
	gw := &fakeGateway{}
	svc := newTestService(t, repo, newFakeLedger(), gw)

	order := pendingOrder(repo, 150000)
	session, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:    order.ID,
		BuyerEmail: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("InitiatePayment: %v", err)
	}
	if session.Reference != "PAY-SOKO-TEST000001" {
		t.Fatalf("reference = %s", session.Reference)
	}
	if repo.orders[order.ID].PaymentReference == nil {
		t.Fatal("payment reference not stored on order")
	}
	if session.AuthorizationURL == "" {
		t.Fatal("authorization url missing")
	}
}

func TestInitiatePaymentRejectsSettledOrder(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 150000)
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid

	_, err := svc.InitiatePayment(context.Background(), InitiatePaymentInput{
		OrderID:    order.ID,
		BuyerEmail: "buyer@example.com",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("got %v, want state conflict", err)
	}
}

func TestConfirmPayment(t *testing.T) {
	repo := newFakeOrdersRepo()
	ledger := newFakeLedger()
	gw := &fakeGateway{verifyResult: &paystack.VerifyResult{
		AmountKobo: 150000,
		Status:     "success",
		Channel:    "card",
	}}
	svc := newTestService(t, repo, ledger, gw)

	order := pendingOrder(repo, 150000)
	ref := "PAY-SOKO-TEST000001"
	order.PaymentReference = &ref

	result, err := svc.ConfirmPayment(context.Background(), ref)
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeConfirmed {
		t.Fatalf("outcome = %s, want confirmed", result.Outcome)
	}
	if result.Order.Status != enums.OrderStatusConfirmed || result.Order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("order = %s/%s", result.Order.Status, result.Order.PaymentStatus)
	}
	if len(ledger.held) != 1 || ledger.held[0].AmountKobo != 150000 {
		t.Fatalf("escrow holds = %+v", ledger.held)
	}

	// A duplicate webhook delivery must be a no-op.
	repeat, err := svc.ConfirmPayment(context.Background(), ref)
	if err != nil {
		t.Fatalf("repeat ConfirmPayment: %v", err)
	}
	if repeat.Outcome != OutcomeAlreadyConfirmed {
		t.Fatalf("repeat outcome = %s, want already_confirmed", repeat.Outcome)
	}
	if len(ledger.held) != 1 {
		t.Fatalf("escrow held %d times", len(ledger.held))
	}
	if gw.verifyCalls != 1 {
		t.Fatalf("gateway verified %d times, want 1", gw.verifyCalls)
	}
}

func TestConfirmPaymentFailedCharge(t *testing.T) {
	repo := newFakeOrdersRepo()
	ledger := newFakeLedger()
	gw := &fakeGateway{verifyResult: &paystack.VerifyResult{Status: "failed"}}
	svc := newTestService(t, repo, ledger, gw)

	order := pendingOrder(repo, 150000)
	ref := "PAY-SOKO-TEST000001"
	order.PaymentReference = &ref

	result, err := svc.ConfirmPayment(context.Background(), ref)
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", result.Outcome)
	}
	if result.Order.Status != enums.OrderStatusCancelled {
		t.Fatalf("order status = %s, want cancelled", result.Order.Status)
	}
	// A declined charge cancels the order but leaves payment_status pending
	// so a later explicit verify can still reconcile the reference.
	if result.Order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", result.Order.PaymentStatus)
	}
	if len(ledger.held) != 0 {
		t.Fatal("escrow held for a failed charge")
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	repo := newFakeOrdersRepo()
	gw := &fakeGateway{verifyResult: &paystack.VerifyResult{AmountKobo: 99999, Status: "success"}}
	svc := newTestService(t, repo, newFakeLedger(), gw)

	order := pendingOrder(repo, 150000)
	ref := "PAY-SOKO-TEST000001"
	order.PaymentReference = &ref

	_, err := svc.ConfirmPayment(context.Background(), ref)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("got %v, want dependency error", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusPending {
		t.Fatal("order moved despite amount mismatch")
	}
}

func TestConfirmPaymentUnknownReference(t *testing.T) {
	svc := newTestService(t, newFakeOrdersRepo(), newFakeLedger(), &fakeGateway{})
	_, err := svc.ConfirmPayment(context.Background(), "PAY-UNKNOWN")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:  order.ID,
		VendorID: order.VendorID,
		Status:   enums.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("status = %s", updated.Status)
	}

	tracking := "TRK-001"
	updated, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Status:         enums.OrderStatusShipped,
		TrackingNumber: &tracking,
	})
	if err != nil {
		t.Fatalf("UpdateStatus to shipped: %v", err)
	}
	if updated.TrackingNumber == nil || *updated.TrackingNumber != tracking {
		t.Fatalf("tracking = %v", updated.TrackingNumber)
	}
}

func TestUpdateStatusGuards(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusConfirmed

	t.Run("wrong vendor", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID:  order.ID,
			VendorID: uuid.New(),
			Status:   enums.OrderStatusProcessing,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("got %v, want forbidden", err)
		}
	})

	t.Run("skipping a step", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID:  order.ID,
			VendorID: order.VendorID,
			Status:   enums.OrderStatusShipped,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("got %v, want state conflict", err)
		}
	})

	t.Run("terminal status", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
			OrderID:  order.ID,
			VendorID: order.VendorID,
			Status:   enums.OrderStatusDelivered,
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("got %v, want validation error", err)
		}
	})
}

func TestCancelUnpaidOrder(t *testing.T) {
	repo := newFakeOrdersRepo()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, ledger, &fakeGateway{})

	order := pendingOrder(repo, 50000)
	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		RequestedBy: order.BuyerID,
		Reason:      "changed my mind",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", repo.orders[order.ID].Status)
	}
	if len(ledger.refunded) != 0 {
		t.Fatal("refund issued for unpaid order")
	}
}

func TestCancelPaidOrderRefundsEscrow(t *testing.T) {
	repo := newFakeOrdersRepo()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, ledger, &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid
	ledger.escrows[order.ID] = &models.EscrowTransaction{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  enums.EscrowStatusHeld,
	}

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		RequestedBy: order.BuyerID,
		Reason:      "vendor out of stock",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(ledger.refunded) != 1 {
		t.Fatalf("refunds = %d, want 1", len(ledger.refunded))
	}
	if ledger.refunded[0].EscrowID != ledger.escrows[order.ID].ID {
		t.Fatal("refund targeted wrong escrow")
	}
}

func TestCancelShippedOrderRejected(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusShipped

	err := svc.Cancel(context.Background(), CancelInput{
		OrderID:     order.ID,
		RequestedBy: order.BuyerID,
		Reason:      "too late",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("got %v, want state conflict", err)
	}
}

func TestStatusMachine(t *testing.T) {
	tests := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusConfirmed, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, true},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered, true},
		{enums.OrderStatusDelivered, enums.OrderStatusDisputed, true},
		{enums.OrderStatusDisputed, enums.OrderStatusDelivered, true},
		{enums.OrderStatusCancelled, enums.OrderStatusConfirmed, false},
		{enums.OrderStatusDelivered, enums.OrderStatusShipped, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMarkDelivered(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusShipped

	if err := svc.MarkDelivered(context.Background(), nil, order.ID); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusDelivered {
		t.Fatalf("status = %s", repo.orders[order.ID].Status)
	}

	err := svc.MarkDelivered(context.Background(), nil, order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("repeat MarkDelivered: got %v, want state conflict", err)
	}
}

func TestMarkDisputed(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := newTestService(t, repo, newFakeLedger(), &fakeGateway{})

	order := pendingOrder(repo, 50000)
	order.Status = enums.OrderStatusDelivered

	if err := svc.MarkDisputed(context.Background(), nil, order.ID); err != nil {
		t.Fatalf("MarkDisputed: %v", err)
	}
	if repo.orders[order.ID].Status != enums.OrderStatusDisputed {
		t.Fatalf("status = %s", repo.orders[order.ID].Status)
	}

	// Unpaid orders cannot be disputed.
	unpaid := pendingOrder(repo, 20000)
	err := svc.MarkDisputed(context.Background(), nil, unpaid.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("got %v, want state conflict", err)
	}
}
