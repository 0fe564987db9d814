package deliveries

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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderFlow interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type escrowLedger interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, input escrow.ReleaseInput) error
}

// Service tracks provider delivery reports and buyer confirmations.
type Service interface {
	// ApplyProviderUpdate records the delivery provider's latest view of a
	// shipment. A delivered report also moves the order to delivered.
	ApplyProviderUpdate(ctx context.Context, input ProviderUpdateInput) (*models.Delivery, error)
	// ConfirmDelivery lets the buyer acknowledge receipt, which releases the
	// order's escrow. A repeated confirmation is a no-op.
	ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) (*ConfirmDeliveryResult, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	// ReleaseUnconfirmed settles escrows for deliveries the provider marked
	// delivered but no buyer confirmed within the window.
	ReleaseUnconfirmed(ctx context.Context, window time.Duration, batchSize int) (int, error)
}

type service struct {
	repo    Repository
	orders  orderFlow
	escrows escrowLedger
	tx      txRunner
	logger  *logger.Logger
	// systemActor attributes auto-releases in the escrow audit trail.
	systemActor uuid.UUID
}

// ProviderUpdateInput is one status callback from the delivery provider.
type ProviderUpdateInput struct {
	OrderID       uuid.UUID
	Status        enums.DeliveryStatus
	EstimatedDate *time.Time
	ProofURL      *string
	RecipientName *string
}

// ConfirmDeliveryResult reports whether this call released the escrow or an
// earlier confirmation already had.
type ConfirmDeliveryResult struct {
	Delivery         *models.Delivery
	AlreadyConfirmed bool
}

// NewService wires the deliveries service.
func NewService(repo Repository, orders orderFlow, escrows escrowLedger, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order flow required")
	}
	if escrows == nil {
		return nil, fmt.Errorf("escrow ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		orders:      orders,
		escrows:     escrows,
		tx:          tx,
		logger:      logg,
		systemActor: uuid.MustParse("00000000-0000-0000-0000-000000000001"),
	}, nil
}

func (s *service) ApplyProviderUpdate(ctx context.Context, input ProviderUpdateInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	delivery := &models.Delivery{
		OrderID:       input.OrderID,
		Status:        input.Status,
		EstimatedDate: input.EstimatedDate,
		ProofURL:      input.ProofURL,
		RecipientName: input.RecipientName,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store delivery update")
		}
		if input.Status == enums.DeliveryStatusDelivered && order.Status == enums.OrderStatusShipped {
			if err := s.orders.MarkDelivered(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, fmt.Sprintf("delivery update applied: %s", input.Status))
	return s.GetByOrderID(ctx, input.OrderID)
}

func (s *service) ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) (*ConfirmDeliveryResult, error) {
	if orderID == uuid.Nil || buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusShipped && order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not shipped yet")
	}

	delivery, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		// Pickup orders may have no provider record; create one so the
		// confirmation has somewhere to land.
		delivery = &models.Delivery{OrderID: orderID, Status: enums.DeliveryStatusDelivered}
		if err := s.repo.Upsert(ctx, delivery); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create delivery record")
		}
		if delivery, err = s.GetByOrderID(ctx, orderID); err != nil {
			return nil, err
		}
	}

	if delivery.ActualDate != nil {
		return &ConfirmDeliveryResult{Delivery: delivery, AlreadyConfirmed: true}, nil
	}

	held, err := s.escrows.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lostRace := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		won, err := s.repo.WithTx(tx).SetActualDate(ctx, delivery.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp delivery confirmation")
		}
		if !won {
			// A concurrent confirmation got here first.
			lostRace = true
			return nil
		}
		if order.Status == enums.OrderStatusShipped {
			if err := s.orders.MarkDelivered(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		return s.escrows.ReleaseTx(ctx, tx, escrow.ReleaseInput{
			EscrowID:    held.ID,
			ReleaseType: enums.ReleaseTypeManualBuyer,
			RequestedBy: buyerID,
			DeliveryID:  &delivery.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	confirmed, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if confirmed.ActualDate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery confirmation not recorded")
	}
	if lostRace {
		return &ConfirmDeliveryResult{Delivery: confirmed, AlreadyConfirmed: true}, nil
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())
	s.logger.Info(ctx, "buyer confirmed delivery, escrow released")
	return &ConfirmDeliveryResult{Delivery: confirmed}, nil
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery record for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) ReleaseUnconfirmed(ctx context.Context, window time.Duration, batchSize int) (int, error) {
	if window <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "auto-release window must be positive")
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	cutoff := time.Now().UTC().Add(-window)
	pending, err := s.repo.ListAutoReleasable(ctx, cutoff, batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list auto-releasable deliveries")
	}

	released := 0
	for _, delivery := range pending {
		held, err := s.escrows.GetByOrderID(ctx, delivery.OrderID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			return released, err
		}
		if held.Status.IsTerminal() {
			// The dispute path already settled this escrow; retire the row so
			// it stops showing up in the batch.
			if _, err := s.repo.SetActualDate(ctx, delivery.ID, time.Now().UTC()); err != nil {
				return released, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retire settled delivery")
			}
			continue
		}
		if held.Status == enums.EscrowStatusDisputed {
			continue
		}

		delivery := delivery
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			won, err := s.repo.WithTx(tx).SetActualDate(ctx, delivery.ID, time.Now().UTC())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp auto-release")
			}
			if !won {
				return nil
			}
			return s.escrows.ReleaseTx(ctx, tx, escrow.ReleaseInput{
				EscrowID:    held.ID,
				ReleaseType: enums.ReleaseTypeAutoDelivery,
				RequestedBy: s.systemActor,
				DeliveryID:  &delivery.ID,
			})
		})
		if err != nil {
			// Frozen escrows stay frozen; skip and keep draining the batch.
			if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return released, err
		}
		released++
	}

	if released > 0 {
		s.logger.Info(ctx, fmt.Sprintf("auto-released %d unconfirmed deliveries", released))
	}
	return released, nil
}
