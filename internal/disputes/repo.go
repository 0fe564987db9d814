package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

// Repository manages dispute rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
	ListByStatus(ctx context.Context, status enums.DisputeStatus, params pagination.Params) ([]models.Dispute, string, error)
	// TransitionStatus flips status only when the row still holds fromStatus.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DisputeStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a disputes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []enums.DisputeStatus{
			enums.DisputeStatusOpen, enums.DisputeStatusUnderReview,
		}).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.DisputeStatus, params pagination.Params) ([]models.Dispute, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var disputes []models.Dispute
	if err := query.Find(&disputes).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(disputes) > limit {
		disputes = disputes[:limit]
		last := disputes[len(disputes)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return disputes, next, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DisputeStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	result := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
