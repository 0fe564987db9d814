package referrals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
)

// Repository manages referrals, commission payments, and commission settings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVendorByCode(ctx context.Context, code string) (*models.Vendor, error)
	FindMarketerByCode(ctx context.Context, code string) (*models.Marketer, error)
	CreateReferral(ctx context.Context, referral *models.Referral) error
	FindReferralByID(ctx context.Context, id uuid.UUID) (*models.Referral, error)
	FindReferralByReferredVendor(ctx context.Context, vendorID uuid.UUID) (*models.Referral, error)
	ListReferralsByReferrer(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) ([]models.Referral, error)
	ListUnpaidCompleted(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) ([]models.Referral, error)
	FindReferralsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Referral, error)
	// MarkReferralsPaid flips commission_paid on exactly the given referrals,
	// skipping any that were already paid, and reports how many rows changed.
	MarkReferralsPaid(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
	UpdateReferralStatus(ctx context.Context, id uuid.UUID, from, to enums.ReferralStatus) (bool, error)
	CreateCommissionPayment(ctx context.Context, payment *models.CommissionPayment) error
	ListCommissionPayments(ctx context.Context, recipientType enums.ReferrerType, recipientID uuid.UUID) ([]models.CommissionPayment, error)
	GetSetting(ctx context.Context, referrerType enums.ReferrerType) (*models.CommissionSetting, error)
	UpsertSetting(ctx context.Context, setting *models.CommissionSetting) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a referrals repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendorByCode(ctx context.Context, code string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindMarketerByCode(ctx context.Context, code string) (*models.Marketer, error) {
	var marketer models.Marketer
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&marketer).Error; err != nil {
		return nil, err
	}
	return &marketer, nil
}

func (r *repository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *repository) FindReferralByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) FindReferralByReferredVendor(ctx context.Context, vendorID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("referred_vendor_id = ?", vendorID).First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) ListReferralsByReferrer(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_type = ? AND referrer_id = ?", referrerType, referrerID).
		Order("created_at DESC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *repository) ListUnpaidCompleted(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_type = ? AND referrer_id = ? AND status = ? AND commission_paid = false",
			referrerType, referrerID, enums.ReferralStatusCompleted).
		Order("created_at ASC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *repository) FindReferralsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *repository) MarkReferralsPaid(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id IN ? AND status = ? AND commission_paid = false", ids, enums.ReferralStatusCompleted).
		Updates(map[string]any{
			"commission_paid":    true,
			"commission_paid_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) UpdateReferralStatus(ctx context.Context, id uuid.UUID, from, to enums.ReferralStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ? AND status = ? AND commission_paid = false", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateCommissionPayment(ctx context.Context, payment *models.CommissionPayment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListCommissionPayments(ctx context.Context, recipientType enums.ReferrerType, recipientID uuid.UUID) ([]models.CommissionPayment, error) {
	var payments []models.CommissionPayment
	err := r.db.WithContext(ctx).
		Where("recipient_type = ? AND recipient_id = ?", recipientType, recipientID).
		Order("processed_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) GetSetting(ctx context.Context, referrerType enums.ReferrerType) (*models.CommissionSetting, error) {
	var setting models.CommissionSetting
	if err := r.db.WithContext(ctx).Where("referrer_type = ?", referrerType).First(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *repository) UpsertSetting(ctx context.Context, setting *models.CommissionSetting) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "referrer_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"amount_kobo", "active", "updated_by", "updated_at",
			}),
		}).
		Create(setting).Error
}
