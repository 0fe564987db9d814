package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/api/validators"
	referralsvc "github.com/sokoplace/sokoplace-backend/internal/referrals"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type referralResponse struct {
	ID               uuid.UUID `json:"id"`
	ReferrerType     string    `json:"referrer_type"`
	ReferrerID       uuid.UUID `json:"referrer_id"`
	ReferredVendorID uuid.UUID `json:"referred_vendor_id"`
	Code             string    `json:"code"`
	Status           string    `json:"status"`
	CommissionKobo   int64     `json:"commission_kobo"`
	CommissionPaid   bool      `json:"commission_paid"`
}

func toReferralResponse(referral models.Referral) referralResponse {
	return referralResponse{
		ID:               referral.ID,
		ReferrerType:     referral.ReferrerType.String(),
		ReferrerID:       referral.ReferrerID,
		ReferredVendorID: referral.ReferredVendorID,
		Code:             referral.Code,
		Status:           referral.Status.String(),
		CommissionKobo:   referral.CommissionKobo,
		CommissionPaid:   referral.CommissionPaid,
	}
}

func toReferralResponses(referrals []models.Referral) []referralResponse {
	out := make([]referralResponse, 0, len(referrals))
	for _, referral := range referrals {
		out = append(out, toReferralResponse(referral))
	}
	return out
}

type referrerResponse struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ValidateReferralCode resolves a referral code to its active owner.
func ValidateReferralCode(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		code := chiURLParamTrimmed(r, "code")
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "referral code required"))
			return
		}

		referrer, err := svc.ValidateCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, referrerResponse{
			Type: referrer.Type.String(),
			ID:   referrer.ID,
			Name: referrer.Name,
		})
	}
}

type recordReferralRequest struct {
	Code             string    `json:"code" validate:"required,min=3,max=50"`
	ReferredVendorID uuid.UUID `json:"referred_vendor_id" validate:"required"`
}

// RecordReferral attributes a newly onboarded vendor to a referral code.
func RecordReferral(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		var payload recordReferralRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		referral, err := svc.Record(r.Context(), payload.Code, payload.ReferredVendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toReferralResponse(*referral))
	}
}

type commissionSummaryResponse struct {
	TotalKobo int64              `json:"total_kobo"`
	Referrals []referralResponse `json:"referrals"`
}

// PendingCommission sums the calling referrer's completed, unpaid referrals.
func PendingCommission(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referrerID, referrerType, err := actorReferrer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.PendingCommission(r.Context(), referrerType, referrerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, commissionSummaryResponse{
			TotalKobo: summary.TotalKobo,
			Referrals: toReferralResponses(summary.Referrals),
		})
	}
}

// ReferralPayments lists the calling referrer's commission payouts.
func ReferralPayments(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referrerID, referrerType, err := actorReferrer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, err := svc.ListPayments(r.Context(), referrerType, referrerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"payments": toCommissionPaymentResponses(payments)})
	}
}

// AdminRejectReferral voids an unpaid referral.
func AdminRejectReferral(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referralID, err := parseUUIDParam(r, "referralId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		referral, err := svc.Reject(r.Context(), referralID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toReferralResponse(*referral))
	}
}

// actorReferrer maps the actor's role onto the referrer tables. Vendors earn
// through vendor codes, marketers through marketer codes.
func actorReferrer(r *http.Request) (uuid.UUID, enums.ReferrerType, error) {
	actorID, err := middleware.ActorID(r)
	if err != nil {
		return uuid.Nil, "", err
	}
	switch middleware.RoleFromContext(r.Context()) {
	case "vendor":
		return actorID, enums.ReferrerTypeVendor, nil
	case "marketer":
		return actorID, enums.ReferrerTypeMarketer, nil
	default:
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "only vendors and marketers earn referral commissions")
	}
}
