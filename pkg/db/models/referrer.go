package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is the slice of the vendor account the settlement engine needs:
// identity, referral code, and whether the account is active.
type Vendor struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessName string    `gorm:"column:business_name;not null"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	ReferralCode string    `gorm:"column:referral_code;not null;uniqueIndex"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Marketer is an external promoter who earns commission on vendor signups.
type Marketer struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FullName     string    `gorm:"column:full_name;not null"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	ReferralCode string    `gorm:"column:referral_code;not null;uniqueIndex"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
