package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// EscrowRelease is the append-only audit row written for every release
// decision. It is never updated after creation.
type EscrowRelease struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EscrowID    uuid.UUID         `gorm:"column:escrow_id;type:uuid;not null;index"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	ReleaseType enums.ReleaseType `gorm:"column:release_type;type:text;not null"`
	RequestedBy uuid.UUID         `gorm:"column:requested_by;type:uuid;not null"`
	DeliveryID  *uuid.UUID        `gorm:"column:delivery_id;type:uuid"`
	Notes       *string           `gorm:"column:notes"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
