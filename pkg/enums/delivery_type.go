package enums

import "fmt"

// DeliveryType selects how the buyer wants their order fulfilled.
type DeliveryType string

const (
	DeliveryTypeDoor   DeliveryType = "door"
	DeliveryTypePickup DeliveryType = "pickup"
)

// String implements fmt.Stringer.
func (d DeliveryType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryType.
func (d DeliveryType) IsValid() bool {
	return d == DeliveryTypeDoor || d == DeliveryTypePickup
}

// ParseDeliveryType converts raw input into a DeliveryType.
func ParseDeliveryType(value string) (DeliveryType, error) {
	switch DeliveryType(value) {
	case DeliveryTypeDoor:
		return DeliveryTypeDoor, nil
	case DeliveryTypePickup:
		return DeliveryTypePickup, nil
	}
	return "", fmt.Errorf("invalid delivery type %q", value)
}
