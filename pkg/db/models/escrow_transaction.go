package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// EscrowTransaction holds verified buyer funds for one order until delivery
// confirmation, refund, or dispute resolution. VendorAmountKobo plus
// PlatformFeeKobo always equals AmountKobo exactly.
type EscrowTransaction struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID          uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID         uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null;index"`
	AmountKobo       int64              `gorm:"column:amount_kobo;not null"`
	PlatformFeeKobo  int64              `gorm:"column:platform_fee_kobo;not null"`
	VendorAmountKobo int64              `gorm:"column:vendor_amount_kobo;not null"`
	Status           enums.EscrowStatus `gorm:"column:status;type:text;not null;default:'held'"`
	ReleaseReason    *string            `gorm:"column:release_reason"`
	DisputeID        *uuid.UUID         `gorm:"column:dispute_id;type:uuid"`
	HeldAt           time.Time          `gorm:"column:held_at;not null"`
	ReleasedAt       *time.Time         `gorm:"column:released_at"`
	RefundedAt       *time.Time         `gorm:"column:refunded_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
