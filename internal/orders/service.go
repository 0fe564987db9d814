package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/escrow"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
	"github.com/sokoplace/sokoplace-backend/pkg/paystack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	InitializeTransaction(ctx context.Context, params paystack.InitializeParams) (*paystack.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

type escrowLedger interface {
	Hold(ctx context.Context, tx *gorm.DB, input escrow.HoldInput) (*models.EscrowTransaction, error)
	Refund(ctx context.Context, input escrow.RefundInput) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
}

// allowedTransitions is the order status machine. Any transition not listed
// here is rejected.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled, enums.OrderStatusDisputed},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusDisputed},
	enums.OrderStatusDelivered:  {enums.OrderStatusDisputed},
	enums.OrderStatusDisputed:   {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// CanTransition reports whether the status machine permits from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ConfirmOutcome summarizes what a payment confirmation attempt did.
type ConfirmOutcome string

const (
	// OutcomeConfirmed means this call verified the charge and held escrow.
	OutcomeConfirmed ConfirmOutcome = "confirmed"
	// OutcomeAlreadyConfirmed means an earlier call already settled the
	// reference; the retry was a no-op.
	OutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	// OutcomeFailed means the gateway declined the charge and the order was
	// cancelled.
	OutcomeFailed ConfirmOutcome = "failed"
)

// Service exposes order lifecycle operations downstream of checkout.
type Service interface {
	InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*PaymentSession, error)
	// ConfirmPayment settles a gateway reference exactly once. Retries and
	// duplicate webhook deliveries resolve to OutcomeAlreadyConfirmed.
	ConfirmPayment(ctx context.Context, reference string) (*ConfirmResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) error
	// MarkDelivered is called by the delivery flow inside its transaction.
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	// MarkDisputed freezes the order status inside the dispute-filing
	// transaction.
	MarkDisputed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	// CompleteFromDispute closes a disputed order as delivered when the
	// ruling favors the vendor.
	CompleteFromDispute(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo    Repository
	escrows escrowLedger
	gateway gateway
	tx      txRunner
	logger  *logger.Logger
	metrics *metrics.SettlementMetrics
}

// InitiatePaymentInput starts a gateway checkout session for one order.
type InitiatePaymentInput struct {
	OrderID    uuid.UUID
	BuyerEmail string
}

// PaymentSession carries the gateway handles the client needs to pay.
type PaymentSession struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// ConfirmResult reports the outcome of a payment confirmation attempt.
type ConfirmResult struct {
	Outcome ConfirmOutcome
	Order   *models.Order
}

// UpdateStatusInput is a vendor-driven fulfilment progress update.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	VendorID       uuid.UUID
	Status         enums.OrderStatus
	TrackingNumber *string
}

// CancelInput cancels an order, refunding held escrow when payment cleared.
type CancelInput struct {
	OrderID     uuid.UUID
	RequestedBy uuid.UUID
	Reason      string
}

// NewService wires the order lifecycle service.
func NewService(repo Repository, escrows escrowLedger, gw gateway, tx txRunner, logg *logger.Logger, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if escrows == nil {
		return nil, fmt.Errorf("escrow ledger required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    repo,
		escrows: escrows,
		gateway: gw,
		tx:      tx,
		logger:  logg,
		metrics: m,
	}, nil
}

func (s *service) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (*PaymentSession, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled for order")
	}

	reference := fmt.Sprintf("PAY-%s", order.OrderNumber)
	result, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeParams{
		Email:      input.BuyerEmail,
		AmountKobo: order.TotalKobo,
		Reference:  reference,
		Metadata: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetPaymentReference(ctx, order.ID, result.Reference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment reference")
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, "payment session initialized")
	return &PaymentSession{
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Reference:        result.Reference,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, reference string) (*ConfirmResult, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	order, err := s.repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by reference")
	}
	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	if order.PaymentStatus == enums.PaymentStatusPaid {
		s.metrics.IncPaymentConfirmed("already_confirmed")
		return &ConfirmResult{Outcome: OutcomeAlreadyConfirmed, Order: order}, nil
	}

	verdict, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !verdict.Success() {
		return s.failPayment(ctx, order)
	}
	if verdict.AmountKobo != order.TotalKobo {
		s.logger.Warn(ctx, fmt.Sprintf("gateway amount %d does not match order total %d", verdict.AmountKobo, order.TotalKobo))
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway amount does not match order total")
	}

	var outcome ConfirmOutcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"confirmed_at":   now,
		}
		if verdict.Channel != "" {
			updates["payment_channel"] = verdict.Channel
		}
		changed, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
		}
		if !changed {
			// A concurrent confirmation won the race; resolve below.
			outcome = OutcomeAlreadyConfirmed
			return nil
		}

		if _, err := s.escrows.Hold(ctx, tx, escrow.HoldInput{
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			VendorID:   order.VendorID,
			AmountKobo: order.TotalKobo,
		}); err != nil {
			return err
		}
		outcome = OutcomeConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome == OutcomeAlreadyConfirmed {
		refreshed, err := s.loadOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if refreshed.PaymentStatus != enums.PaymentStatusPaid {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order left awaiting-payment state")
		}
		s.metrics.IncPaymentConfirmed("already_confirmed")
		return &ConfirmResult{Outcome: OutcomeAlreadyConfirmed, Order: refreshed}, nil
	}

	confirmed, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncPaymentConfirmed("confirmed")
	s.logger.Info(ctx, "payment confirmed and escrow held")
	return &ConfirmResult{Outcome: OutcomeConfirmed, Order: confirmed}, nil
}

func (s *service) failPayment(ctx context.Context, order *models.Order) (*ConfirmResult, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		// payment_status stays pending so a later verify can still reconcile
		// the charge explicitly.
		changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order on failed payment")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order left awaiting-payment state")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cancelled, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncPaymentConfirmed("failed")
	s.logger.Warn(ctx, "gateway declined payment, order cancelled")
	return &ConfirmResult{Outcome: OutcomeFailed, Order: cancelled}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.loadOrder(ctx, id)
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if buyerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	orders, next, err := s.repo.ListByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list buyer orders")
	}
	return orders, next, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if vendorID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	orders, next, err := s.repo.ListByVendor(ctx, vendorID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list vendor orders")
	}
	return orders, next, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and vendor id required")
	}
	if input.Status != enums.OrderStatusProcessing && input.Status != enums.OrderStatusShipped {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendors may only move orders to processing or shipped")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != input.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")
	}
	if !CanTransition(order.Status, input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Status))
	}

	updates := map[string]any{}
	if input.TrackingNumber != nil {
		updates["tracking_number"] = *input.TrackingNumber
	}
	changed, err := s.repo.TransitionStatus(ctx, order.ID, order.Status, input.Status, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return s.loadOrder(ctx, order.ID)
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case enums.OrderStatusPending:
		changed, err := s.repo.TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": time.Now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel unpaid order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return nil
	case enums.OrderStatusConfirmed, enums.OrderStatusProcessing:
		// Paid but not yet shipped: return the held funds. The ledger flips
		// the order to cancelled in the same transaction.
		held, err := s.escrows.GetByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		return s.escrows.Refund(ctx, escrow.RefundInput{
			EscrowID:    held.ID,
			Reason:      input.Reason,
			RequestedBy: input.RequestedBy,
		})
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel order in %s state", order.Status))
	}
}

func (s *service) MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, orderID, enums.OrderStatusShipped, enums.OrderStatusDelivered, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order delivered")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a deliverable state")
	}
	return nil
}

func (s *service) MarkDisputed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !CanTransition(order.Status, enums.OrderStatusDisputed) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot dispute order in %s state", order.Status))
	}
	changed, err := repo.TransitionStatus(ctx, orderID, order.Status, enums.OrderStatusDisputed, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order disputed")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}
	return nil
}

func (s *service) CompleteFromDispute(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, orderID, enums.OrderStatusDisputed, enums.OrderStatusDelivered, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close disputed order")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not disputed")
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}
