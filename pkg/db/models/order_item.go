package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is the denormalized snapshot of one cart line at checkout time.
// Later product edits never change what the buyer ordered.
type OrderItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Title         string    `gorm:"column:title;not null"`
	ImageURL      *string   `gorm:"column:image_url"`
	Qty           int       `gorm:"column:qty;not null"`
	UnitPriceKobo int64     `gorm:"column:unit_price_kobo;not null"`
	TotalKobo     int64     `gorm:"column:total_kobo;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
