package wallets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
)

// Repository manages vendor wallets and their immutable transaction lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	FindWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	// ApplyDelta adjusts the cached balance, bumping the optimistic version.
	// The row update serializes concurrent credits for the same vendor.
	ApplyDelta(ctx context.Context, vendorID uuid.UUID, deltaKobo int64) (*models.VendorWallet, error)
	CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error)
	SumTransactions(ctx context.Context, vendorID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a wallets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	wallet := &models.VendorWallet{VendorID: vendorID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vendor_id"}},
			DoNothing: true,
		}).
		Create(wallet).Error
	if err != nil {
		return nil, err
	}
	return r.FindWallet(ctx, vendorID)
}

func (r *repository) FindWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	var wallet models.VendorWallet
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) ApplyDelta(ctx context.Context, vendorID uuid.UUID, deltaKobo int64) (*models.VendorWallet, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VendorWallet{}).
		Where("vendor_id = ?", vendorID).
		Updates(map[string]any{
			"balance_kobo": gorm.Expr("balance_kobo + ?", deltaKobo),
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errors.New("vendor wallet missing")
	}
	return r.FindWallet(ctx, vendorID)
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) SumTransactions(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("vendor_id = ?", vendorID).
		Select("SUM(amount_kobo)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
