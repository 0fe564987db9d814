package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// WalletTransaction is one immutable ledger line for a vendor wallet.
// BalanceAfterKobo is the running balance resulting from this line; the
// wallet's cached balance must always equal the latest line's value.
type WalletTransaction struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID         uuid.UUID                   `gorm:"column:vendor_id;type:uuid;not null;index"`
	Type             enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	AmountKobo       int64                       `gorm:"column:amount_kobo;not null"`
	BalanceAfterKobo int64                       `gorm:"column:balance_after_kobo;not null"`
	Reference        string                      `gorm:"column:reference;not null;index"`
	EscrowID         *uuid.UUID                  `gorm:"column:escrow_id;type:uuid"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
