package models

import (
	"time"

	"github.com/google/uuid"
)

// VendorWallet caches a vendor's current balance. Version implements
// optimistic locking so concurrent escrow releases for the same vendor
// cannot lose a credit.
type VendorWallet struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID    uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex"`
	BalanceKobo int64     `gorm:"column:balance_kobo;not null;default:0"`
	Version     int64     `gorm:"column:version;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
