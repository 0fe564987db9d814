package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	deliverysvc "github.com/sokoplace/sokoplace-backend/internal/deliveries"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type deliveryResponse struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       uuid.UUID  `json:"order_id"`
	Status        string     `json:"status"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`
	ActualDate    *time.Time `json:"actual_date,omitempty"`
	ProofURL      *string    `json:"proof_url,omitempty"`
	RecipientName *string    `json:"recipient_name,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toDeliveryResponse(delivery models.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:            delivery.ID,
		OrderID:       delivery.OrderID,
		Status:        delivery.Status.String(),
		EstimatedDate: delivery.EstimatedDate,
		ActualDate:    delivery.ActualDate,
		ProofURL:      delivery.ProofURL,
		RecipientName: delivery.RecipientName,
		UpdatedAt:     delivery.UpdatedAt,
	}
}

// OrderDelivery returns the provider's delivery record for an order.
func OrderDelivery(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.GetByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toDeliveryResponse(*delivery))
	}
}

type confirmDeliveryResponse struct {
	Delivery         deliveryResponse `json:"delivery"`
	AlreadyConfirmed bool             `json:"already_confirmed"`
}

// ConfirmDelivery lets the buyer acknowledge receipt, releasing escrow.
func ConfirmDelivery(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		buyerID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmDelivery(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, confirmDeliveryResponse{
			Delivery:         toDeliveryResponse(*result.Delivery),
			AlreadyConfirmed: result.AlreadyConfirmed,
		})
	}
}
