package enums

import "fmt"

// ReferrerType distinguishes who earns the commission for a vendor signup.
type ReferrerType string

const (
	ReferrerTypeVendor   ReferrerType = "vendor"
	ReferrerTypeMarketer ReferrerType = "marketer"
)

var validReferrerTypes = []ReferrerType{
	ReferrerTypeVendor,
	ReferrerTypeMarketer,
}

// String implements fmt.Stringer.
func (r ReferrerType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReferrerType.
func (r ReferrerType) IsValid() bool {
	for _, candidate := range validReferrerTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferrerType converts raw input into a ReferrerType.
func ParseReferrerType(value string) (ReferrerType, error) {
	for _, candidate := range validReferrerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referrer type %q", value)
}

// ReferralStatus tracks whether a referral qualifies for commission.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusRejected  ReferralStatus = "rejected"
)

var validReferralStatuses = []ReferralStatus{
	ReferralStatusPending,
	ReferralStatusCompleted,
	ReferralStatusRejected,
}

// String implements fmt.Stringer.
func (r ReferralStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReferralStatus.
func (r ReferralStatus) IsValid() bool {
	for _, candidate := range validReferralStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferralStatus converts raw input into a ReferralStatus.
func ParseReferralStatus(value string) (ReferralStatus, error) {
	for _, candidate := range validReferralStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid referral status %q", value)
}
