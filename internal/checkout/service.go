package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/orders"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/ordernum"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns a multi-vendor cart into one order per vendor.
type Service interface {
	// CreateOrders splits the cart by vendor and persists every resulting
	// order atomically. Either all vendor orders exist afterwards or none do.
	CreateOrders(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

type service struct {
	repo   orders.Repository
	tx     txRunner
	logger *logger.Logger
}

// CartItem is one line of the buyer's cart at checkout time.
type CartItem struct {
	ProductID     uuid.UUID
	VendorID      uuid.UUID
	Title         string
	ImageURL      *string
	Qty           int
	UnitPriceKobo int64
}

// CheckoutInput is the full cart plus delivery choices.
type CheckoutInput struct {
	BuyerID           uuid.UUID
	DeliveryAddressID uuid.UUID
	DeliveryType      enums.DeliveryType
	Items             []CartItem
	// ShippingFees maps vendor to the quoted shipping fee for that vendor's
	// portion of the cart. Vendors without an entry ship free.
	ShippingFees map[uuid.UUID]int64
}

// CheckoutResult reports the orders a checkout produced.
type CheckoutResult struct {
	CheckoutGroupID uuid.UUID
	Orders          []models.Order
	TotalKobo       int64
}

// NewService wires the checkout service.
func NewService(repo orders.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logger: logg}, nil
}

func (s *service) CreateOrders(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	groupID := uuid.New()
	built, err := buildOrders(groupID, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range built {
			if err := repo.Create(ctx, &built[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create vendor order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, order := range built {
		total += order.TotalKobo
	}

	ctx = s.logger.WithUserID(ctx, input.BuyerID.String())
	s.logger.Info(ctx, fmt.Sprintf("checkout created %d vendor orders", len(built)))
	return &CheckoutResult{
		CheckoutGroupID: groupID,
		Orders:          built,
		TotalKobo:       total,
	}, nil
}

func validateInput(input CheckoutInput) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.DeliveryAddressID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if !input.DeliveryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil || item.VendorID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d missing product or vendor", i))
		}
		if item.Title == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d missing title", i))
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d quantity must be positive", i))
		}
		if item.UnitPriceKobo <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d price must be positive", i))
		}
	}
	for vendorID, fee := range input.ShippingFees {
		if fee < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("negative shipping fee for vendor %s", vendorID))
		}
	}
	return nil
}

// buildOrders partitions cart items by vendor, preserving the cart's item
// order within each vendor group and the order vendors first appear.
func buildOrders(groupID uuid.UUID, input CheckoutInput) ([]models.Order, error) {
	var vendorSeq []uuid.UUID
	grouped := map[uuid.UUID][]CartItem{}
	for _, item := range input.Items {
		if _, seen := grouped[item.VendorID]; !seen {
			vendorSeq = append(vendorSeq, item.VendorID)
		}
		grouped[item.VendorID] = append(grouped[item.VendorID], item)
	}

	orders := make([]models.Order, 0, len(vendorSeq))
	for _, vendorID := range vendorSeq {
		items := grouped[vendorID]
		var subtotal int64
		lines := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			lineTotal := int64(item.Qty) * item.UnitPriceKobo
			subtotal += lineTotal
			lines = append(lines, models.OrderItem{
				ProductID:     item.ProductID,
				Title:         item.Title,
				ImageURL:      item.ImageURL,
				Qty:           item.Qty,
				UnitPriceKobo: item.UnitPriceKobo,
				TotalKobo:     lineTotal,
			})
		}
		shipping := input.ShippingFees[vendorID]
		number, err := ordernum.New()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		orders = append(orders, models.Order{
			OrderNumber:       number,
			CheckoutGroupID:   groupID,
			BuyerID:           input.BuyerID,
			VendorID:          vendorID,
			Currency:          enums.CurrencyNGN,
			DeliveryAddressID: input.DeliveryAddressID,
			DeliveryType:      input.DeliveryType,
			SubtotalKobo:      subtotal,
			ShippingFeeKobo:   shipping,
			TotalKobo:         subtotal + shipping,
			Status:            enums.OrderStatusPending,
			PaymentStatus:     enums.PaymentStatusPending,
			Items:             lines,
		})
	}
	return orders, nil
}
