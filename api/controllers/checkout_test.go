package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	checkoutsvc "github.com/sokoplace/sokoplace-backend/internal/checkout"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type stubCheckoutService struct {
	result *checkoutsvc.CheckoutResult
	err    error
	input  *checkoutsvc.CheckoutInput
}

func (s *stubCheckoutService) CreateOrders(ctx context.Context, input checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	s.input = &input
	return s.result, s.err
}

func controllerTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func actorContext(userID uuid.UUID, role string) context.Context {
	ctx := middleware.WithUserID(context.Background(), userID.String())
	return middleware.WithRole(ctx, role)
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	vendorID := uuid.New()
	groupID := uuid.New()

	stub := &stubCheckoutService{
		result: &checkoutsvc.CheckoutResult{
			CheckoutGroupID: groupID,
			TotalKobo:       251500,
			Orders: []models.Order{
				{
					ID:              uuid.New(),
					OrderNumber:     "SOKO-20260831-AB12CD",
					CheckoutGroupID: groupID,
					BuyerID:         buyerID,
					VendorID:        vendorID,
					Currency:        enums.CurrencyNGN,
					SubtotalKobo:    250000,
					ShippingFeeKobo: 1500,
					TotalKobo:       251500,
					Status:          enums.OrderStatusPending,
					PaymentStatus:   enums.PaymentStatusPending,
				},
			},
		},
	}

	body := `{
		"delivery_address_id": "` + uuid.NewString() + `",
		"delivery_type": "door",
		"items": [
			{"product_id": "` + uuid.NewString() + `", "vendor_id": "` + vendorID.String() + `", "title": "Ankara fabric", "qty": 5, "unit_price_kobo": 50000}
		],
		"shipping_fees": {"` + vendorID.String() + `": 1500}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(actorContext(buyerID, "buyer"))
	rec := httptest.NewRecorder()

	Checkout(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if stub.input == nil {
		t.Fatal("service was not called")
	}
	if stub.input.BuyerID != buyerID {
		t.Fatalf("buyer = %s, want %s", stub.input.BuyerID, buyerID)
	}
	if got := stub.input.ShippingFees[vendorID]; got != 1500 {
		t.Fatalf("shipping fee = %d, want 1500", got)
	}

	var envelope struct {
		Data checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CheckoutGroupID != groupID {
		t.Fatalf("group = %s, want %s", envelope.Data.CheckoutGroupID, groupID)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(envelope.Data.Orders))
	}
}

func TestCheckoutRejectsUnknownDeliveryType(t *testing.T) {
	t.Parallel()

	stub := &stubCheckoutService{}
	body := `{
		"delivery_address_id": "` + uuid.NewString() + `",
		"delivery_type": "teleport",
		"items": [
			{"product_id": "` + uuid.NewString() + `", "vendor_id": "` + uuid.NewString() + `", "title": "Ankara fabric", "qty": 1, "unit_price_kobo": 50000}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(actorContext(uuid.New(), "buyer"))
	rec := httptest.NewRecorder()

	Checkout(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stub.input != nil {
		t.Fatal("service should not be called on invalid delivery type")
	}
}

func TestCheckoutRequiresActor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckoutRejectsEmptyItems(t *testing.T) {
	t.Parallel()

	body := `{
		"delivery_address_id": "` + uuid.NewString() + `",
		"delivery_type": "door",
		"items": []
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(actorContext(uuid.New(), "buyer"))
	rec := httptest.NewRecorder()

	Checkout(&stubCheckoutService{}, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
