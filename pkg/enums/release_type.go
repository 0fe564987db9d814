package enums

import "fmt"

// ReleaseType records which path authorized an escrow release.
type ReleaseType string

const (
	ReleaseTypeAutoDelivery      ReleaseType = "auto_delivery"
	ReleaseTypeManualBuyer       ReleaseType = "manual_buyer"
	ReleaseTypeAdminOverride     ReleaseType = "admin_override"
	ReleaseTypeDisputeResolution ReleaseType = "dispute_resolution"
)

var validReleaseTypes = []ReleaseType{
	ReleaseTypeAutoDelivery,
	ReleaseTypeManualBuyer,
	ReleaseTypeAdminOverride,
	ReleaseTypeDisputeResolution,
}

// String implements fmt.Stringer.
func (r ReleaseType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseType.
func (r ReleaseType) IsValid() bool {
	for _, candidate := range validReleaseTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReleaseType converts raw input into a ReleaseType.
func ParseReleaseType(value string) (ReleaseType, error) {
	for _, candidate := range validReleaseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release type %q", value)
}
