package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
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

type commissionPaymentResponse struct {
	ID            uuid.UUID   `json:"id"`
	RecipientType string      `json:"recipient_type"`
	RecipientID   uuid.UUID   `json:"recipient_id"`
	AmountKobo    int64       `json:"amount_kobo"`
	Method        string      `json:"method"`
	Reference     string      `json:"reference"`
	Status        string      `json:"status"`
	ReferralIDs   []uuid.UUID `json:"referral_ids"`
	Notes         *string     `json:"notes,omitempty"`
	ProcessedBy   uuid.UUID   `json:"processed_by"`
	ProcessedAt   time.Time   `json:"processed_at"`
}

func toCommissionPaymentResponse(payment models.CommissionPayment) commissionPaymentResponse {
	return commissionPaymentResponse{
		ID:            payment.ID,
		RecipientType: payment.RecipientType.String(),
		RecipientID:   payment.RecipientID,
		AmountKobo:    payment.AmountKobo,
		Method:        payment.Method,
		Reference:     payment.Reference,
		Status:        payment.Status.String(),
		ReferralIDs:   payment.ReferralIDs,
		Notes:         payment.Notes,
		ProcessedBy:   payment.ProcessedBy,
		ProcessedAt:   payment.ProcessedAt,
	}
}

func toCommissionPaymentResponses(payments []models.CommissionPayment) []commissionPaymentResponse {
	out := make([]commissionPaymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, toCommissionPaymentResponse(payment))
	}
	return out
}

// AdminPendingCommission sums any referrer's completed, unpaid referrals.
func AdminPendingCommission(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referrerType, referrerID, err := parseReferrerQuery(r)
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

type payCommissionRequest struct {
	RecipientType string      `json:"recipient_type" validate:"required"`
	RecipientID   uuid.UUID   `json:"recipient_id" validate:"required"`
	ReferralIDs   []uuid.UUID `json:"referral_ids" validate:"required,min=1"`
	AmountKobo    int64       `json:"amount_kobo" validate:"required,min=1"`
	Method        string      `json:"method" validate:"required,min=2,max=50"`
	Reference     string      `json:"reference" validate:"required,min=3,max=100"`
	Notes         *string     `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AdminPayCommission records an off-platform commission payout and marks the
// covered referrals paid.
func AdminPayCommission(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payCommissionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipientType, err := enums.ParseReferrerType(payload.RecipientType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient type"))
			return
		}

		payment, err := svc.PayCommission(r.Context(), referralsvc.PayCommissionInput{
			RecipientType: recipientType,
			RecipientID:   payload.RecipientID,
			ReferralIDs:   payload.ReferralIDs,
			AmountKobo:    payload.AmountKobo,
			Method:        payload.Method,
			Reference:     payload.Reference,
			Notes:         payload.Notes,
			ProcessedBy:   adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toCommissionPaymentResponse(*payment))
	}
}

// AdminCommissionPayments lists payouts made to one referrer.
func AdminCommissionPayments(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referrerType, referrerID, err := parseReferrerQuery(r)
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

type commissionSettingResponse struct {
	ReferrerType string     `json:"referrer_type"`
	AmountKobo   int64      `json:"amount_kobo"`
	Active       bool       `json:"active"`
	UpdatedBy    *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toCommissionSettingResponse(setting models.CommissionSetting) commissionSettingResponse {
	return commissionSettingResponse{
		ReferrerType: setting.ReferrerType.String(),
		AmountKobo:   setting.AmountKobo,
		Active:       setting.Active,
		UpdatedBy:    setting.UpdatedBy,
		UpdatedAt:    setting.UpdatedAt,
	}
}

// AdminGetCommissionSetting returns the commission amount for one referrer type.
func AdminGetCommissionSetting(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		referrerType, err := parseReferrerTypeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.GetSetting(r.Context(), referrerType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toCommissionSettingResponse(*setting))
	}
}

type updateCommissionSettingRequest struct {
	AmountKobo int64 `json:"amount_kobo" validate:"min=0"`
	Active     bool  `json:"active"`
}

// AdminUpdateCommissionSetting changes the commission amount for one referrer
// type. Existing referrals keep their snapshotted amount.
func AdminUpdateCommissionSetting(svc referralsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referrals service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		referrerType, err := parseReferrerTypeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCommissionSettingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.UpdateSetting(r.Context(), referralsvc.UpdateSettingInput{
			ReferrerType: referrerType,
			AmountKobo:   payload.AmountKobo,
			Active:       payload.Active,
			UpdatedBy:    adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toCommissionSettingResponse(*setting))
	}
}

func parseReferrerQuery(r *http.Request) (enums.ReferrerType, uuid.UUID, error) {
	referrerType, err := enums.ParseReferrerType(strings.TrimSpace(r.URL.Query().Get("referrer_type")))
	if err != nil {
		return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid referrer type")
	}
	referrerID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("referrer_id")))
	if err != nil {
		return "", uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid referrer id")
	}
	return referrerType, referrerID, nil
}

func parseReferrerTypeParam(r *http.Request) (enums.ReferrerType, error) {
	referrerType, err := enums.ParseReferrerType(chiURLParamTrimmed(r, "referrerType"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid referrer type")
	}
	return referrerType, nil
}

func chiURLParamTrimmed(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
