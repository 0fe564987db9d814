package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Repository manages delivery records, one per order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, delivery *models.Delivery) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	// SetActualDate stamps the confirmation time only when it is still unset,
	// reporting whether this call won.
	SetActualDate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ListAutoReleasable returns delivered records nobody confirmed before
	// the cutoff.
	ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]models.Delivery, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "estimated_date", "proof_url", "recipient_name", "updated_at",
			}),
		}).
		Create(delivery).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) SetActualDate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND actual_date IS NULL", id).
		Updates(map[string]any{
			"actual_date": at,
			"status":      enums.DeliveryStatusDelivered,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListAutoReleasable(ctx context.Context, cutoff time.Time, limit int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Where("status = ? AND actual_date IS NULL AND updated_at < ?", enums.DeliveryStatusDelivered, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}
