package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Repository manages escrow transactions and their release audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, escrow *models.EscrowTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	// TransitionStatus flips status only when the row still holds fromStatus,
	// reporting whether a row changed. The guard runs inside the caller's
	// transaction so check-then-act cannot race.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.EscrowStatus, updates map[string]any) (bool, error)
	CreateRelease(ctx context.Context, release *models.EscrowRelease) error
	ListReleases(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowRelease, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an escrow repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, escrow *models.EscrowTransaction) error {
	if escrow.HeldAt.IsZero() {
		escrow.HeldAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(escrow).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	var escrow models.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&escrow).Error; err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.EscrowStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	result := r.db.WithContext(ctx).
		Model(&models.EscrowTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateRelease(ctx context.Context, release *models.EscrowRelease) error {
	return r.db.WithContext(ctx).Create(release).Error
}

func (r *repository) ListReleases(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowRelease, error) {
	var releases []models.EscrowRelease
	err := r.db.WithContext(ctx).
		Where("escrow_id = ?", escrowID).
		Order("created_at ASC").
		Find(&releases).Error
	if err != nil {
		return nil, err
	}
	return releases, nil
}
