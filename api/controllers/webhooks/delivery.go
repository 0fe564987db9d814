package webhooks

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/api/validators"
	deliverysvc "github.com/sokoplace/sokoplace-backend/internal/deliveries"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type deliveryUpdateRequest struct {
	OrderID       uuid.UUID  `json:"order_id" validate:"required"`
	Status        string     `json:"status" validate:"required"`
	EstimatedDate *time.Time `json:"estimated_date,omitempty"`
	ProofURL      *string    `json:"proof_url,omitempty" validate:"omitempty,url"`
	RecipientName *string    `json:"recipient_name,omitempty" validate:"omitempty,max=255"`
}

// DeliveryWebhook ingests shipment status callbacks from the delivery
// provider. Callers authenticate with the shared webhook token.
func DeliveryWebhook(svc deliverysvc.Service, webhookToken string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}
		if webhookToken == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery webhook token not configured"))
			return
		}

		provided := strings.TrimSpace(r.Header.Get("X-Provider-Token"))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(webhookToken)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "provider token invalid"))
			return
		}

		var payload deliveryUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParseDeliveryStatus(payload.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}

		delivery, err := svc.ApplyProviderUpdate(ctx, deliverysvc.ProviderUpdateInput{
			OrderID:       payload.OrderID,
			Status:        status,
			EstimatedDate: payload.EstimatedDate,
			ProofURL:      payload.ProofURL,
			RecipientName: payload.RecipientName,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"delivery_id": delivery.ID.String(),
			"status":      delivery.Status.String(),
		})
	}
}
