package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Referral attributes a new vendor signup to a referring vendor or marketer.
// CommissionKobo is snapshotted from the settings at creation time; later
// settings changes never alter an existing referral.
type Referral struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerType      enums.ReferrerType   `gorm:"column:referrer_type;type:text;not null"`
	ReferrerID        uuid.UUID            `gorm:"column:referrer_id;type:uuid;not null;index"`
	ReferredVendorID  uuid.UUID            `gorm:"column:referred_vendor_id;type:uuid;not null;uniqueIndex"`
	Code              string               `gorm:"column:code;not null"`
	Status            enums.ReferralStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CommissionKobo    int64                `gorm:"column:commission_kobo;not null"`
	CommissionPaid    bool                 `gorm:"column:commission_paid;not null;default:false"`
	CommissionPaidAt  *time.Time           `gorm:"column:commission_paid_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
