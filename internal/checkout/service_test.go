package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/ordernum"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

type fakeTxRunner struct {
	failed bool
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := fn(nil)
	if err != nil {
		f.failed = true
	}
	return err
}

type fakeOrdersRepo struct {
	created   []models.Order
	failAfter int // fail the Nth create when > 0
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if f.failAfter > 0 && len(f.created)+1 >= f.failAfter {
		return errors.New("insert failed")
	}
	order.ID = uuid.New()
	f.created = append(f.created, *order)
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) ListByCheckoutGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (f *fakeOrdersRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (f *fakeOrdersRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	return false, nil
}

func (f *fakeOrdersRepo) SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error {
	return nil
}

func (f *fakeOrdersRepo) MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return nil
}

func newTestService(t *testing.T, repo *fakeOrdersRepo) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(repo, &fakeTxRunner{}, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func cartInput(vendorA, vendorB uuid.UUID) CheckoutInput {
	return CheckoutInput{
		BuyerID:           uuid.New(),
		DeliveryAddressID: uuid.New(),
		DeliveryType:      enums.DeliveryTypeDoor,
		Items: []CartItem{
			{ProductID: uuid.New(), VendorID: vendorA, Title: "Ankara fabric", Qty: 2, UnitPriceKobo: 350000},
			{ProductID: uuid.New(), VendorID: vendorB, Title: "Leather sandals", Qty: 1, UnitPriceKobo: 1200000},
			{ProductID: uuid.New(), VendorID: vendorA, Title: "Head wrap", Qty: 3, UnitPriceKobo: 80000},
		},
		ShippingFees: map[uuid.UUID]int64{
			vendorA: 150000,
		},
	}
}

func TestCreateOrdersSplitsByVendor(t *testing.T) {
	repo := &fakeOrdersRepo{}
	svc := newTestService(t, repo)

	vendorA := uuid.New()
	vendorB := uuid.New()
	result, err := svc.CreateOrders(context.Background(), cartInput(vendorA, vendorB))
	if err != nil {
		t.Fatalf("CreateOrders: %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(result.Orders))
	}

	first, second := result.Orders[0], result.Orders[1]
	if first.VendorID != vendorA || second.VendorID != vendorB {
		t.Fatal("vendor partition did not preserve first-appearance order")
	}

	// Vendor A: 2*350000 + 3*80000 = 940000 subtotal + 150000 shipping.
	if first.SubtotalKobo != 940000 || first.ShippingFeeKobo != 150000 || first.TotalKobo != 1090000 {
		t.Fatalf("vendor A totals = %d/%d/%d", first.SubtotalKobo, first.ShippingFeeKobo, first.TotalKobo)
	}
	if len(first.Items) != 2 {
		t.Fatalf("vendor A items = %d, want 2", len(first.Items))
	}

	// Vendor B ships free.
	if second.SubtotalKobo != 1200000 || second.ShippingFeeKobo != 0 || second.TotalKobo != 1200000 {
		t.Fatalf("vendor B totals = %d/%d/%d", second.SubtotalKobo, second.ShippingFeeKobo, second.TotalKobo)
	}

	if result.TotalKobo != 2290000 {
		t.Fatalf("checkout total = %d, want 2290000", result.TotalKobo)
	}
	if result.CheckoutGroupID == uuid.Nil {
		t.Fatal("checkout group id not set")
	}
	for _, order := range result.Orders {
		if order.CheckoutGroupID != result.CheckoutGroupID {
			t.Fatal("order not tagged with checkout group")
		}
		if !ordernum.Valid(order.OrderNumber) {
			t.Fatalf("bad order number %q", order.OrderNumber)
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
			t.Fatalf("new order state = %s/%s", order.Status, order.PaymentStatus)
		}
	}
	if first.OrderNumber == second.OrderNumber {
		t.Fatal("orders share an order number")
	}
}

func TestCreateOrdersSingleVendor(t *testing.T) {
	repo := &fakeOrdersRepo{}
	svc := newTestService(t, repo)

	vendor := uuid.New()
	result, err := svc.CreateOrders(context.Background(), CheckoutInput{
		BuyerID:           uuid.New(),
		DeliveryAddressID: uuid.New(),
		DeliveryType:      enums.DeliveryTypePickup,
		Items: []CartItem{
			{ProductID: uuid.New(), VendorID: vendor, Title: "Shea butter", Qty: 4, UnitPriceKobo: 50000},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrders: %v", err)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(result.Orders))
	}
	if result.Orders[0].TotalKobo != 200000 {
		t.Fatalf("total = %d, want 200000", result.Orders[0].TotalKobo)
	}
}

func TestCreateOrdersValidation(t *testing.T) {
	svc := newTestService(t, &fakeOrdersRepo{})
	vendor := uuid.New()
	valid := CheckoutInput{
		BuyerID:           uuid.New(),
		DeliveryAddressID: uuid.New(),
		DeliveryType:      enums.DeliveryTypeDoor,
		Items: []CartItem{
			{ProductID: uuid.New(), VendorID: vendor, Title: "Gele", Qty: 1, UnitPriceKobo: 100000},
		},
	}

	tests := []struct {
		name   string
		mutate func(*CheckoutInput)
	}{
		{"missing buyer", func(in *CheckoutInput) { in.BuyerID = uuid.Nil }},
		{"missing address", func(in *CheckoutInput) { in.DeliveryAddressID = uuid.Nil }},
		{"bad delivery type", func(in *CheckoutInput) { in.DeliveryType = "drone" }},
		{"empty cart", func(in *CheckoutInput) { in.Items = nil }},
		{"zero quantity", func(in *CheckoutInput) { in.Items[0].Qty = 0 }},
		{"negative price", func(in *CheckoutInput) { in.Items[0].UnitPriceKobo = -1 }},
		{"missing title", func(in *CheckoutInput) { in.Items[0].Title = "" }},
		{"negative shipping", func(in *CheckoutInput) {
			in.ShippingFees = map[uuid.UUID]int64{vendor: -500}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			input.Items = append([]CartItem(nil), valid.Items...)
			tt.mutate(&input)
			_, err := svc.CreateOrders(context.Background(), input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestCreateOrdersRollsBackOnFailure(t *testing.T) {
	repo := &fakeOrdersRepo{failAfter: 2}
	tx := &fakeTxRunner{}
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(repo, tx, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.CreateOrders(context.Background(), cartInput(uuid.New(), uuid.New()))
	if !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("got %v, want internal error", err)
	}
	if !tx.failed {
		t.Fatal("transaction did not observe the failure")
	}
}
