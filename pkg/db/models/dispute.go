package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Dispute is filed by a buyer or vendor against an order. Filing is the only
// action that can move an escrow from held to disputed.
type Dispute struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	EscrowID        *uuid.UUID           `gorm:"column:escrow_id;type:uuid"`
	FilerID         uuid.UUID            `gorm:"column:filer_id;type:uuid;not null"`
	FilerType       enums.FilerType      `gorm:"column:filer_type;type:text;not null"`
	Type            enums.DisputeType    `gorm:"column:type;type:text;not null"`
	Description     string               `gorm:"column:description;not null"`
	Evidence        []string             `gorm:"column:evidence;type:jsonb;serializer:json"`
	Status          enums.DisputeStatus  `gorm:"column:status;type:text;not null;default:'open'"`
	Ruling          *enums.DisputeRuling `gorm:"column:ruling;type:text"`
	ResolvedBy      *uuid.UUID           `gorm:"column:resolved_by;type:uuid"`
	ResolutionNotes *string              `gorm:"column:resolution_notes"`
	ResolvedAt      *time.Time           `gorm:"column:resolved_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
