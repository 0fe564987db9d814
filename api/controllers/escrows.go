package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/api/validators"
	escrowsvc "github.com/sokoplace/sokoplace-backend/internal/escrow"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type escrowResponse struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"order_id"`
	BuyerID          uuid.UUID  `json:"buyer_id"`
	VendorID         uuid.UUID  `json:"vendor_id"`
	AmountKobo       int64      `json:"amount_kobo"`
	PlatformFeeKobo  int64      `json:"platform_fee_kobo"`
	VendorAmountKobo int64      `json:"vendor_amount_kobo"`
	Status           string     `json:"status"`
	ReleaseReason    *string    `json:"release_reason,omitempty"`
	DisputeID        *uuid.UUID `json:"dispute_id,omitempty"`
	HeldAt           time.Time  `json:"held_at"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
}

func toEscrowResponse(escrow models.EscrowTransaction) escrowResponse {
	return escrowResponse{
		ID:               escrow.ID,
		OrderID:          escrow.OrderID,
		BuyerID:          escrow.BuyerID,
		VendorID:         escrow.VendorID,
		AmountKobo:       escrow.AmountKobo,
		PlatformFeeKobo:  escrow.PlatformFeeKobo,
		VendorAmountKobo: escrow.VendorAmountKobo,
		Status:           escrow.Status.String(),
		ReleaseReason:    escrow.ReleaseReason,
		DisputeID:        escrow.DisputeID,
		HeldAt:           escrow.HeldAt,
		ReleasedAt:       escrow.ReleasedAt,
		RefundedAt:       escrow.RefundedAt,
	}
}

type releaseEscrowRequest struct {
	Notes string `json:"notes" validate:"required,min=3,max=500"`
}

type refundEscrowRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AdminReleaseEscrow settles a held escrow to the vendor outside the
// delivery and dispute paths.
func AdminReleaseEscrow(svc escrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		escrowID, err := parseUUIDParam(r, "escrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload releaseEscrowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Release(r.Context(), escrowsvc.ReleaseInput{
			EscrowID:    escrowID,
			ReleaseType: enums.ReleaseTypeAdminOverride,
			RequestedBy: adminID,
			Notes:       &payload.Notes,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// AdminRefundEscrow returns a held escrow to the buyer and cancels the order.
func AdminRefundEscrow(svc escrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		escrowID, err := parseUUIDParam(r, "escrowId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundEscrowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Refund(r.Context(), escrowsvc.RefundInput{
			EscrowID:    escrowID,
			Reason:      payload.Reason,
			RequestedBy: adminID,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "refunded"})
	}
}

// AdminOrderEscrow returns the escrow record behind one order.
func AdminOrderEscrow(svc escrowsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escrow, err := svc.GetByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toEscrowResponse(*escrow))
	}
}
