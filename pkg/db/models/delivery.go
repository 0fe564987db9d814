package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Delivery mirrors the delivery provider's record for one order. The escrow
// ledger reads it to decide auto-release eligibility; an unset ActualDate
// marks the first, still-unconfirmed delivery report.
type Delivery struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status        enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	EstimatedDate *time.Time           `gorm:"column:estimated_date"`
	ActualDate    *time.Time           `gorm:"column:actual_date"`
	ProofURL      *string              `gorm:"column:proof_url"`
	RecipientName *string              `gorm:"column:recipient_name"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
