package enums

import "fmt"

// DisputeStatus tracks a dispute from filing through resolution.
type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusUnderReview,
	DisputeStatusResolved,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeType categorizes why the dispute was filed.
type DisputeType string

const (
	DisputeTypeNotDelivered     DisputeType = "not_delivered"
	DisputeTypeDamagedItem      DisputeType = "damaged_item"
	DisputeTypeWrongItem        DisputeType = "wrong_item"
	DisputeTypeQualityIssue     DisputeType = "quality_issue"
	DisputeTypePaymentIssue     DisputeType = "payment_issue"
	DisputeTypeBuyerUnreachable DisputeType = "buyer_unreachable"
	DisputeTypeOther            DisputeType = "other"
)

var validDisputeTypes = []DisputeType{
	DisputeTypeNotDelivered,
	DisputeTypeDamagedItem,
	DisputeTypeWrongItem,
	DisputeTypeQualityIssue,
	DisputeTypePaymentIssue,
	DisputeTypeBuyerUnreachable,
	DisputeTypeOther,
}

// String implements fmt.Stringer.
func (d DisputeType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeType.
func (d DisputeType) IsValid() bool {
	for _, candidate := range validDisputeTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeType converts raw input into a DisputeType.
func ParseDisputeType(value string) (DisputeType, error) {
	for _, candidate := range validDisputeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute type %q", value)
}

// FilerType identifies which side of the order filed the dispute.
type FilerType string

const (
	FilerTypeBuyer  FilerType = "buyer"
	FilerTypeVendor FilerType = "vendor"
)

// String implements fmt.Stringer.
func (f FilerType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FilerType.
func (f FilerType) IsValid() bool {
	return f == FilerTypeBuyer || f == FilerTypeVendor
}

// ParseFilerType converts raw input into a FilerType.
func ParseFilerType(value string) (FilerType, error) {
	switch FilerType(value) {
	case FilerTypeBuyer:
		return FilerTypeBuyer, nil
	case FilerTypeVendor:
		return FilerTypeVendor, nil
	}
	return "", fmt.Errorf("invalid filer type %q", value)
}

// DisputeRuling is the admin's verdict when resolving a dispute.
type DisputeRuling string

const (
	DisputeRulingReleaseToVendor DisputeRuling = "release_to_vendor"
	DisputeRulingRefundBuyer     DisputeRuling = "refund_buyer"
)

// String implements fmt.Stringer.
func (d DisputeRuling) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeRuling.
func (d DisputeRuling) IsValid() bool {
	return d == DisputeRulingReleaseToVendor || d == DisputeRulingRefundBuyer
}

// ParseDisputeRuling converts raw input into a DisputeRuling.
func ParseDisputeRuling(value string) (DisputeRuling, error) {
	switch DisputeRuling(value) {
	case DisputeRulingReleaseToVendor:
		return DisputeRulingReleaseToVendor, nil
	case DisputeRulingRefundBuyer:
		return DisputeRulingRefundBuyer, nil
	}
	return "", fmt.Errorf("invalid dispute ruling %q", value)
}
