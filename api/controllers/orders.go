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
	ordersvc "github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

type orderItemResponse struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	Title         string    `json:"title"`
	ImageURL      *string   `json:"image_url,omitempty"`
	Qty           int       `json:"qty"`
	UnitPriceKobo int64     `json:"unit_price_kobo"`
	TotalKobo     int64     `json:"total_kobo"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	CheckoutGroupID  uuid.UUID           `json:"checkout_group_id"`
	BuyerID          uuid.UUID           `json:"buyer_id"`
	VendorID         uuid.UUID           `json:"vendor_id"`
	Currency         string              `json:"currency"`
	DeliveryType     string              `json:"delivery_type"`
	SubtotalKobo     int64               `json:"subtotal_kobo"`
	ShippingFeeKobo  int64               `json:"shipping_fee_kobo"`
	TotalKobo        int64               `json:"total_kobo"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"payment_status"`
	PaymentReference *string             `json:"payment_reference,omitempty"`
	TrackingNumber   *string             `json:"tracking_number,omitempty"`
	Items            []orderItemResponse `json:"items,omitempty"`
	Escrow           *escrowResponse     `json:"escrow,omitempty"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func toOrderResponse(order models.Order) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		CheckoutGroupID:  order.CheckoutGroupID,
		BuyerID:          order.BuyerID,
		VendorID:         order.VendorID,
		Currency:         order.Currency.String(),
		DeliveryType:     order.DeliveryType.String(),
		SubtotalKobo:     order.SubtotalKobo,
		ShippingFeeKobo:  order.ShippingFeeKobo,
		TotalKobo:        order.TotalKobo,
		Status:           order.Status.String(),
		PaymentStatus:    order.PaymentStatus.String(),
		PaymentReference: order.PaymentReference,
		TrackingNumber:   order.TrackingNumber,
		ConfirmedAt:      order.ConfirmedAt,
		CancelledAt:      order.CancelledAt,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Title:         item.Title,
			ImageURL:      item.ImageURL,
			Qty:           item.Qty,
			UnitPriceKobo: item.UnitPriceKobo,
			TotalKobo:     item.TotalKobo,
		})
	}
	if order.Escrow != nil {
		escrow := toEscrowResponse(*order.Escrow)
		resp.Escrow = &escrow
	}
	return resp
}

func toOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	return out
}

// ListOrders pages the actor's orders, buyer-side or vendor-side depending
// on their role.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var (
			orders     []models.Order
			nextCursor string
		)
		switch middleware.RoleFromContext(r.Context()) {
		case "vendor":
			orders, nextCursor, err = svc.ListByVendor(r.Context(), actorID, params)
		default:
			orders, nextCursor, err = svc.ListByBuyer(r.Context(), actorID, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderListResponse{
			Orders:     toOrderResponses(orders),
			NextCursor: nextCursor,
		})
	}
}

// GetOrder returns one order after checking the actor is a party to it.
func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if middleware.RoleFromContext(r.Context()) != "admin" && order.BuyerID != actorID && order.VendorID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you"))
			return
		}

		responses.WriteSuccess(w, toOrderResponse(*order))
	}
}

type payOrderRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type payOrderResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// PayOrder opens a payment session for a pending order.
func PayOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.BuyerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you"))
			return
		}

		session, err := svc.InitiatePayment(r.Context(), ordersvc.InitiatePaymentInput{
			OrderID:    orderID,
			BuyerEmail: payload.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payOrderResponse{
			AuthorizationURL: session.AuthorizationURL,
			AccessCode:       session.AccessCode,
			Reference:        session.Reference,
		})
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// CancelOrder cancels the buyer's order, refunding held escrow when payment
// already cleared.
func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.BuyerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you"))
			return
		}

		if err := svc.Cancel(r.Context(), ordersvc.CancelInput{
			OrderID:     orderID,
			RequestedBy: actorID,
			Reason:      payload.Reason,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

type updateOrderStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"tracking_number,omitempty" validate:"omitempty,min=3,max=100"`
}

// UpdateOrderStatus lets the vendor move a paid order through fulfilment.
func UpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), ordersvc.UpdateStatusInput{
			OrderID:        orderID,
			VendorID:       actorID,
			Status:         status,
			TrackingNumber: payload.TrackingNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderResponse(*order))
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"param": name})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier").WithDetails(map[string]any{"param": name})
	}
	return id, nil
}

func parsePageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
