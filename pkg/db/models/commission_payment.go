package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// CommissionPayment records an admin paying out one or more referrals'
// commissions. The referenced referrals flip commission_paid in the same
// transaction that creates this row.
type CommissionPayment struct {
	ID            uuid.UUID                     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientType enums.ReferrerType            `gorm:"column:recipient_type;type:text;not null"`
	RecipientID   uuid.UUID                     `gorm:"column:recipient_id;type:uuid;not null;index"`
	AmountKobo    int64                         `gorm:"column:amount_kobo;not null"`
	Method        string                        `gorm:"column:method;not null"`
	Reference     string                        `gorm:"column:reference;not null;uniqueIndex"`
	Status        enums.CommissionPaymentStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	ReferralIDs   []uuid.UUID                   `gorm:"column:referral_ids;type:jsonb;serializer:json"`
	Notes         *string                       `gorm:"column:notes"`
	ProcessedBy   uuid.UUID                     `gorm:"column:processed_by;type:uuid;not null"`
	ProcessedAt   time.Time                     `gorm:"column:processed_at;not null"`
	CreatedAt     time.Time                     `gorm:"column:created_at;autoCreateTime"`
}
