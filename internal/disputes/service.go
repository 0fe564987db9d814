package disputes

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
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderFlow interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	MarkDisputed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	CompleteFromDispute(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type escrowLedger interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	Freeze(ctx context.Context, tx *gorm.DB, escrowID, disputeID uuid.UUID) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, input escrow.ReleaseInput) error
	RefundTx(ctx context.Context, tx *gorm.DB, input escrow.RefundInput) error
}

// Service handles dispute filing and admin resolution.
type Service interface {
	// File opens a dispute, freezing the order's escrow in the same
	// transaction. One open dispute per order.
	File(ctx context.Context, input FileInput) (*models.Dispute, error)
	// StartReview marks an open dispute as being worked by an admin.
	StartReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error)
	// Resolve applies an admin ruling, settling the frozen escrow one way or
	// the other atomically with the dispute update.
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
	ListByStatus(ctx context.Context, status enums.DisputeStatus, params pagination.Params) ([]models.Dispute, string, error)
}

type service struct {
	repo    Repository
	orders  orderFlow
	escrows escrowLedger
	tx      txRunner
	logger  *logger.Logger
}

// FileInput describes a new dispute from a buyer or vendor.
type FileInput struct {
	OrderID     uuid.UUID
	FilerID     uuid.UUID
	FilerType   enums.FilerType
	Type        enums.DisputeType
	Description string
	Evidence    []string
}

// ResolveInput carries an admin's ruling on a dispute.
type ResolveInput struct {
	DisputeID uuid.UUID
	AdminID   uuid.UUID
	Ruling    enums.DisputeRuling
	Notes     string
}

// NewService wires the disputes service.
func NewService(repo Repository, orders orderFlow, escrows escrowLedger, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
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
	return &service{repo: repo, orders: orders, escrows: escrows, tx: tx, logger: logg}, nil
}

func (s *service) File(ctx context.Context, input FileInput) (*models.Dispute, error) {
	if err := validateFileInput(input); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := checkFiler(order, input); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindOpenByOrderID(ctx, input.OrderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has an open dispute")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check for open dispute")
	}

	held, err := s.escrows.GetByOrderID(ctx, input.OrderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no funds in escrow")
		}
		return nil, err
	}
	if held.Status != enums.EscrowStatusHeld {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already settled")
	}

	dispute := &models.Dispute{
		OrderID:     input.OrderID,
		EscrowID:    &held.ID,
		FilerID:     input.FilerID,
		FilerType:   input.FilerType,
		Type:        input.Type,
		Description: input.Description,
		Evidence:    input.Evidence,
		Status:      enums.DisputeStatusOpen,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create dispute")
		}
		if err := s.escrows.Freeze(ctx, tx, held.ID, dispute.ID); err != nil {
			return err
		}
		return s.orders.MarkDisputed(ctx, tx, order.ID)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, fmt.Sprintf("dispute filed by %s: %s", input.FilerType, input.Type))
	return dispute, nil
}

func (s *service) StartReview(ctx context.Context, disputeID, adminID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil || adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id and admin id required")
	}
	changed, err := s.repo.TransitionStatus(ctx, disputeID, enums.DisputeStatusOpen, enums.DisputeStatusUnderReview, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "start dispute review")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute is not open")
	}
	return s.GetByID(ctx, disputeID)
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil || input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id and admin id required")
	}
	if !input.Ruling.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ruling")
	}
	if input.Notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution notes required")
	}

	dispute, err := s.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == enums.DisputeStatusResolved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already resolved")
	}
	if dispute.EscrowID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dispute has no escrow attached")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		changed, err := s.repo.WithTx(tx).TransitionStatus(ctx, dispute.ID, dispute.Status, enums.DisputeStatusResolved, map[string]any{
			"ruling":           input.Ruling,
			"resolved_by":      input.AdminID,
			"resolution_notes": input.Notes,
			"resolved_at":      now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve dispute")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute status changed concurrently")
		}

		switch input.Ruling {
		case enums.DisputeRulingReleaseToVendor:
			notes := input.Notes
			if err := s.escrows.ReleaseTx(ctx, tx, escrow.ReleaseInput{
				EscrowID:    *dispute.EscrowID,
				ReleaseType: enums.ReleaseTypeDisputeResolution,
				RequestedBy: input.AdminID,
				Notes:       &notes,
			}); err != nil {
				return err
			}
			return s.orders.CompleteFromDispute(ctx, tx, dispute.OrderID)
		case enums.DisputeRulingRefundBuyer:
			return s.escrows.RefundTx(ctx, tx, escrow.RefundInput{
				EscrowID:    *dispute.EscrowID,
				Reason:      input.Notes,
				RequestedBy: input.AdminID,
			}.ResolveDispute())
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid ruling")
		}
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, dispute.OrderID.String())
	s.logger.Info(ctx, fmt.Sprintf("dispute resolved: %s", input.Ruling))
	return s.GetByID(ctx, dispute.ID)
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	dispute, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	disputes, err := s.repo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list order disputes")
	}
	return disputes, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.DisputeStatus, params pagination.Params) ([]models.Dispute, string, error) {
	if !status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute status")
	}
	disputes, next, err := s.repo.ListByStatus(ctx, status, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list disputes")
	}
	return disputes, next, nil
}

func validateFileInput(input FileInput) error {
	if input.OrderID == uuid.Nil || input.FilerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id and filer id required")
	}
	if !input.FilerType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid filer type")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute type")
	}
	if input.Description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	return nil
}

func checkFiler(order *models.Order, input FileInput) error {
	switch input.FilerType {
	case enums.FilerTypeBuyer:
		if order.BuyerID != input.FilerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "filer is not the order's buyer")
		}
	case enums.FilerTypeVendor:
		if order.VendorID != input.FilerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "filer is not the order's vendor")
		}
	}
	return nil
}
