package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/api/validators"
	checkoutsvc "github.com/sokoplace/sokoplace-backend/internal/checkout"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	VendorID      uuid.UUID `json:"vendor_id" validate:"required"`
	Title         string    `json:"title" validate:"required,min=1,max=255"`
	ImageURL      *string   `json:"image_url,omitempty" validate:"omitempty,url"`
	Qty           int       `json:"qty" validate:"required,min=1"`
	UnitPriceKobo int64     `json:"unit_price_kobo" validate:"required,min=1"`
}

type checkoutRequest struct {
	DeliveryAddressID uuid.UUID             `json:"delivery_address_id" validate:"required"`
	DeliveryType      string                `json:"delivery_type" validate:"required"`
	Items             []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingFees      map[string]int64      `json:"shipping_fees,omitempty"`
}

type checkoutResponse struct {
	CheckoutGroupID uuid.UUID       `json:"checkout_group_id"`
	TotalKobo       int64           `json:"total_kobo"`
	Orders          []orderResponse `json:"orders"`
}

// Checkout splits the submitted cart into per-vendor orders.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryType, err := enums.ParseDeliveryType(payload.DeliveryType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
			return
		}

		input := checkoutsvc.CheckoutInput{
			BuyerID:           buyerID,
			DeliveryAddressID: payload.DeliveryAddressID,
			DeliveryType:      deliveryType,
			ShippingFees:      map[uuid.UUID]int64{},
		}
		for _, item := range payload.Items {
			input.Items = append(input.Items, checkoutsvc.CartItem{
				ProductID:     item.ProductID,
				VendorID:      item.VendorID,
				Title:         item.Title,
				ImageURL:      item.ImageURL,
				Qty:           item.Qty,
				UnitPriceKobo: item.UnitPriceKobo,
			})
		}
		for rawVendorID, fee := range payload.ShippingFees {
			vendorID, parseErr := uuid.Parse(rawVendorID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid shipping fee vendor id"))
				return
			}
			input.ShippingFees[vendorID] = fee
		}

		result, err := svc.CreateOrders(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			CheckoutGroupID: result.CheckoutGroupID,
			TotalKobo:       result.TotalKobo,
			Orders:          toOrderResponses(result.Orders),
		})
	}
}
