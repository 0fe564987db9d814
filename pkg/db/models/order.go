package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Order is the per-vendor order produced when a multi-vendor cart is split
// at checkout. Orders are never deleted, only status-transitioned.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	CheckoutGroupID   uuid.UUID           `gorm:"column:checkout_group_id;type:uuid;not null;index"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	VendorID          uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null;default:'NGN'"`
	DeliveryAddressID uuid.UUID           `gorm:"column:delivery_address_id;type:uuid;not null"`
	DeliveryType      enums.DeliveryType  `gorm:"column:delivery_type;type:text;not null"`
	SubtotalKobo      int64               `gorm:"column:subtotal_kobo;not null"`
	ShippingFeeKobo   int64               `gorm:"column:shipping_fee_kobo;not null;default:0"`
	TotalKobo         int64               `gorm:"column:total_kobo;not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentReference  *string             `gorm:"column:payment_reference;index"`
	PaymentChannel    *string             `gorm:"column:payment_channel"`
	TrackingNumber    *string             `gorm:"column:tracking_number"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Escrow            *EscrowTransaction  `gorm:"foreignKey:OrderID"`
	ConfirmedAt       *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
