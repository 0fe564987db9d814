package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// CommissionSetting is the singleton-per-referrer-type flat commission
// configuration, read when a referral is created.
type CommissionSetting struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerType enums.ReferrerType `gorm:"column:referrer_type;type:text;not null;uniqueIndex"`
	AmountKobo   int64              `gorm:"column:amount_kobo;not null"`
	Active       bool               `gorm:"column:active;not null;default:true"`
	UpdatedBy    *uuid.UUID         `gorm:"column:updated_by;type:uuid"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
