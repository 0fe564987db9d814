package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/wallets"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderSettler lets the escrow ledger flip order state on refund without
// depending on the orders package.
type orderSettler interface {
	MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service is the single authority allowed to move held buyer funds.
type Service interface {
	// Hold earmarks verified funds for an order inside the caller's
	// payment-confirmation transaction.
	Hold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.EscrowTransaction, error)
	Release(ctx context.Context, input ReleaseInput) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error
	Refund(ctx context.Context, input RefundInput) error
	RefundTx(ctx context.Context, tx *gorm.DB, input RefundInput) error
	// Freeze moves a held escrow to disputed inside the caller's
	// dispute-filing transaction.
	Freeze(ctx context.Context, tx *gorm.DB, escrowID, disputeID uuid.UUID) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
}

type service struct {
	repo    Repository
	wallets wallets.Repository
	orders  orderSettler
	tx      txRunner
	feeBps  int
	metrics *metrics.SettlementMetrics
}

// HoldInput describes the verified payment an escrow hold protects.
type HoldInput struct {
	OrderID    uuid.UUID
	BuyerID    uuid.UUID
	VendorID   uuid.UUID
	AmountKobo int64
}

// ReleaseInput authorizes crediting held funds to the vendor wallet.
type ReleaseInput struct {
	EscrowID    uuid.UUID
	ReleaseType enums.ReleaseType
	RequestedBy uuid.UUID
	DeliveryID  *uuid.UUID
	Notes       *string
}

// RefundInput returns held funds to the buyer and cancels the order.
type RefundInput struct {
	EscrowID    uuid.UUID
	Reason      string
	RequestedBy uuid.UUID
	// fromDisputed permits refunding a frozen escrow; only the dispute
	// resolution path sets it.
	fromDisputed bool
}

// ResolveDispute marks the refund as coming from the dispute path, which is
// the only path allowed to move an escrow out of disputed.
func (r RefundInput) ResolveDispute() RefundInput {
	r.fromDisputed = true
	return r
}

// NewService wires the escrow ledger with its collaborators.
func NewService(repo Repository, walletRepo wallets.Repository, orders orderSettler, tx txRunner, feeBps int, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order settler required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if feeBps < 0 || feeBps > 10000 {
		return nil, fmt.Errorf("fee bps out of range: %d", feeBps)
	}
	return &service{
		repo:    repo,
		wallets: walletRepo,
		orders:  orders,
		tx:      tx,
		feeBps:  feeBps,
		metrics: m,
	}, nil
}

// SplitAmount computes the platform fee and vendor share for a gross amount.
// The fee rounds half-up to the nearest kobo, so fee + vendor always equals
// amount exactly.
func SplitAmount(amountKobo int64, feeBps int) (feeKobo, vendorKobo int64) {
	fee := decimal.NewFromInt(amountKobo).
		Mul(decimal.NewFromInt(int64(feeBps))).
		DivRound(decimal.NewFromInt(10000), 0)
	feeKobo = fee.IntPart()
	vendorKobo = amountKobo - feeKobo
	return feeKobo, vendorKobo
}

func (s *service) Hold(ctx context.Context, tx *gorm.DB, input HoldInput) (*models.EscrowTransaction, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	if existing, err := repo.FindByOrderID(ctx, input.OrderID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "escrow already exists for order")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow by order")
	}

	fee, vendorAmount := SplitAmount(input.AmountKobo, s.feeBps)
	escrow := &models.EscrowTransaction{
		OrderID:          input.OrderID,
		BuyerID:          input.BuyerID,
		VendorID:         input.VendorID,
		AmountKobo:       input.AmountKobo,
		PlatformFeeKobo:  fee,
		VendorAmountKobo: vendorAmount,
		Status:           enums.EscrowStatusHeld,
		HeldAt:           time.Now().UTC(),
	}
	if err := repo.Create(ctx, escrow); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create escrow")
	}

	s.metrics.IncEscrowTransition(enums.EscrowStatusHeld.String())
	s.metrics.AddAmountMoved("held", escrow.AmountKobo)
	return escrow, nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseTx(ctx, tx, input)
	})
}

func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error {
	if input.EscrowID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "escrow id required")
	}
	if !input.ReleaseType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid release type")
	}
	if input.RequestedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested by required")
	}

	repo := s.repo.WithTx(tx)
	walletRepo := s.wallets.WithTx(tx)

	escrow, err := repo.FindByID(ctx, input.EscrowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow")
	}

	fromStatus := enums.EscrowStatusHeld
	if escrow.Status == enums.EscrowStatusDisputed {
		if input.ReleaseType != enums.ReleaseTypeDisputeResolution {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is frozen by an open dispute")
		}
		fromStatus = enums.EscrowStatusDisputed
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"released_at":    now,
		"release_reason": releaseReason(input),
	}
	changed, err := repo.TransitionStatus(ctx, escrow.ID, fromStatus, enums.EscrowStatusReleased, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transition escrow to released")
	}
	if !changed {
		// A concurrent or repeated call already settled this escrow; the
		// vendor must not be credited twice.
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already settled")
	}

	if _, err := walletRepo.EnsureWallet(ctx, escrow.VendorID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ensure vendor wallet")
	}
	wallet, err := walletRepo.ApplyDelta(ctx, escrow.VendorID, escrow.VendorAmountKobo)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit vendor wallet")
	}

	txn := &models.WalletTransaction{
		VendorID:         escrow.VendorID,
		Type:             enums.WalletTransactionTypeSale,
		AmountKobo:       escrow.VendorAmountKobo,
		BalanceAfterKobo: wallet.BalanceKobo,
		Reference:        fmt.Sprintf("escrow:%s", escrow.ID),
		EscrowID:         &escrow.ID,
	}
	if err := walletRepo.CreateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record wallet transaction")
	}

	release := &models.EscrowRelease{
		EscrowID:    escrow.ID,
		OrderID:     escrow.OrderID,
		ReleaseType: input.ReleaseType,
		RequestedBy: input.RequestedBy,
		DeliveryID:  input.DeliveryID,
		Notes:       input.Notes,
	}
	if err := repo.CreateRelease(ctx, release); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record escrow release")
	}

	s.metrics.IncEscrowTransition(enums.EscrowStatusReleased.String())
	s.metrics.AddAmountMoved("released", escrow.VendorAmountKobo)
	return nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.RefundTx(ctx, tx, input)
	})
}

func (s *service) RefundTx(ctx context.Context, tx *gorm.DB, input RefundInput) error {
	if input.EscrowID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "escrow id required")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	repo := s.repo.WithTx(tx)

	escrow, err := repo.FindByID(ctx, input.EscrowID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow")
	}

	fromStatus := enums.EscrowStatusHeld
	if escrow.Status == enums.EscrowStatusDisputed {
		if !input.fromDisputed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is frozen by an open dispute")
		}
		fromStatus = enums.EscrowStatusDisputed
	}

	now := time.Now().UTC()
	changed, err := repo.TransitionStatus(ctx, escrow.ID, fromStatus, enums.EscrowStatusRefunded, map[string]any{
		"refunded_at":    now,
		"release_reason": input.Reason,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transition escrow to refunded")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already settled")
	}

	if err := s.orders.MarkRefunded(ctx, tx, escrow.OrderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order refunded")
	}

	s.metrics.IncEscrowTransition(enums.EscrowStatusRefunded.String())
	s.metrics.AddAmountMoved("refunded", escrow.AmountKobo)
	return nil
}

func (s *service) Freeze(ctx context.Context, tx *gorm.DB, escrowID, disputeID uuid.UUID) error {
	if escrowID == uuid.Nil || disputeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "escrow id and dispute id required")
	}

	repo := s.repo.WithTx(tx)
	changed, err := repo.TransitionStatus(ctx, escrowID, enums.EscrowStatusHeld, enums.EscrowStatusDisputed, map[string]any{
		"dispute_id": disputeID,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze escrow")
	}
	if !changed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow cannot be frozen in current state")
	}

	s.metrics.IncEscrowTransition(enums.EscrowStatusDisputed.String())
	return nil
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	escrow, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow")
	}
	return escrow, nil
}

func releaseReason(input ReleaseInput) string {
	if input.Notes != nil && *input.Notes != "" {
		return *input.Notes
	}
	return input.ReleaseType.String()
}
