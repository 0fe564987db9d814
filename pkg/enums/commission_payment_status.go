package enums

import "fmt"

// CommissionPaymentStatus tracks an admin-initiated commission payout.
type CommissionPaymentStatus string

const (
	CommissionPaymentStatusCompleted CommissionPaymentStatus = "completed"
	CommissionPaymentStatusReversed  CommissionPaymentStatus = "reversed"
)

// String implements fmt.Stringer.
func (c CommissionPaymentStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionPaymentStatus.
func (c CommissionPaymentStatus) IsValid() bool {
	return c == CommissionPaymentStatusCompleted || c == CommissionPaymentStatusReversed
}

// ParseCommissionPaymentStatus converts raw input into a CommissionPaymentStatus.
func ParseCommissionPaymentStatus(value string) (CommissionPaymentStatus, error) {
	switch CommissionPaymentStatus(value) {
	case CommissionPaymentStatusCompleted:
		return CommissionPaymentStatusCompleted, nil
	case CommissionPaymentStatusReversed:
		return CommissionPaymentStatusReversed, nil
	}
	return "", fmt.Errorf("invalid commission payment status %q", value)
}
