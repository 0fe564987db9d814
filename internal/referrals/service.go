package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Referrer identifies who owns a referral code.
type Referrer struct {
	Type enums.ReferrerType
	ID   uuid.UUID
	Name string
}

// CommissionSummary aggregates a referrer's unpaid earned commissions.
type CommissionSummary struct {
	TotalKobo int64
	Referrals []models.Referral
}

// Service handles referral attribution and commission payouts.
type Service interface {
	// ValidateCode resolves a referral code to its active owner. Vendor codes
	// and marketer codes live in separate tables; the result says which.
	ValidateCode(ctx context.Context, code string) (*Referrer, error)
	// Record attributes a newly onboarded vendor to a referral code,
	// snapshotting the commission amount from the current settings.
	Record(ctx context.Context, code string, referredVendorID uuid.UUID) (*models.Referral, error)
	// Reject voids an unpaid referral so it can never be paid out.
	Reject(ctx context.Context, referralID uuid.UUID) (*models.Referral, error)
	// PendingCommission sums a referrer's completed, unpaid referrals.
	PendingCommission(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) (*CommissionSummary, error)
	// PayCommission records an off-platform payout and marks the referrals
	// paid atomically. Paying an already-paid referral fails the whole batch.
	PayCommission(ctx context.Context, input PayCommissionInput) (*models.CommissionPayment, error)
	ListPayments(ctx context.Context, recipientType enums.ReferrerType, recipientID uuid.UUID) ([]models.CommissionPayment, error)
	GetSetting(ctx context.Context, referrerType enums.ReferrerType) (*models.CommissionSetting, error)
	UpdateSetting(ctx context.Context, input UpdateSettingInput) (*models.CommissionSetting, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	logger  *logger.Logger
	metrics *metrics.SettlementMetrics
}

// PayCommissionInput is an admin-initiated commission payout.
type PayCommissionInput struct {
	RecipientType enums.ReferrerType
	RecipientID   uuid.UUID
	ReferralIDs   []uuid.UUID
	AmountKobo    int64
	Method        string
	Reference     string
	Notes         *string
	ProcessedBy   uuid.UUID
}

// UpdateSettingInput changes the flat commission for one referrer type.
type UpdateSettingInput struct {
	ReferrerType enums.ReferrerType
	AmountKobo   int64
	Active       bool
	UpdatedBy    uuid.UUID
}

// NewService wires the referrals service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("referrals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logger: logg, metrics: m}, nil
}

func (s *service) ValidateCode(ctx context.Context, code string) (*Referrer, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral code required")
	}

	vendor, err := s.repo.FindVendorByCode(ctx, code)
	if err == nil {
		if !vendor.Active {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "referral code belongs to an inactive vendor")
		}
		return &Referrer{Type: enums.ReferrerTypeVendor, ID: vendor.ID, Name: vendor.BusinessName}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up vendor code")
	}

	marketer, err := s.repo.FindMarketerByCode(ctx, code)
	if err == nil {
		if !marketer.Active {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "referral code belongs to an inactive marketer")
		}
		return &Referrer{Type: enums.ReferrerTypeMarketer, ID: marketer.ID, Name: marketer.FullName}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up marketer code")
	}

	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown referral code")
}

func (s *service) Record(ctx context.Context, code string, referredVendorID uuid.UUID) (*models.Referral, error) {
	if referredVendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referred vendor id required")
	}

	referrer, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.Type == enums.ReferrerTypeVendor && referrer.ID == referredVendorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendors cannot refer themselves")
	}

	if _, err := s.repo.FindReferralByReferredVendor(ctx, referredVendorID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "vendor already has a referral")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing referral")
	}

	commission, err := s.commissionFor(ctx, referrer.Type)
	if err != nil {
		return nil, err
	}

	referral := &models.Referral{
		ReferrerType:     referrer.Type,
		ReferrerID:       referrer.ID,
		ReferredVendorID: referredVendorID,
		Code:             code,
		Status:           enums.ReferralStatusCompleted,
		CommissionKobo:   commission,
	}
	if err := s.repo.CreateReferral(ctx, referral); err != nil {
		// Backstop for two onboardings racing past the existence check.
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "vendor already has a referral")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create referral")
	}

	ctx = s.logger.WithVendorID(ctx, referredVendorID.String())
	s.logger.Info(ctx, fmt.Sprintf("referral recorded for %s %s", referrer.Type, referrer.ID))
	return referral, nil
}

// commissionFor reads the snapshot amount for a referrer type. A missing or
// inactive setting means no commission is owed for new signups.
func (s *service) commissionFor(ctx context.Context, referrerType enums.ReferrerType) (int64, error) {
	setting, err := s.repo.GetSetting(ctx, referrerType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load commission setting")
	}
	if !setting.Active {
		return 0, nil
	}
	return setting.AmountKobo, nil
}

func (s *service) Reject(ctx context.Context, referralID uuid.UUID) (*models.Referral, error) {
	if referralID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral id required")
	}

	referral, err := s.loadReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if referral.CommissionPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "referral commission already paid")
	}
	if referral.Status == enums.ReferralStatusRejected {
		return referral, nil
	}

	changed, err := s.repo.UpdateReferralStatus(ctx, referralID, referral.Status, enums.ReferralStatusRejected)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject referral")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "referral changed concurrently")
	}
	return s.loadReferral(ctx, referralID)
}

func (s *service) PendingCommission(ctx context.Context, referrerType enums.ReferrerType, referrerID uuid.UUID) (*CommissionSummary, error) {
	if !referrerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid referrer type")
	}
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "referrer id required")
	}

	referrals, err := s.repo.ListUnpaidCompleted(ctx, referrerType, referrerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unpaid referrals")
	}

	summary := &CommissionSummary{Referrals: referrals}
	for _, referral := range referrals {
		summary.TotalKobo += referral.CommissionKobo
	}
	return summary, nil
}

func (s *service) PayCommission(ctx context.Context, input PayCommissionInput) (*models.CommissionPayment, error) {
	if err := validatePayInput(input); err != nil {
		return nil, err
	}

	referrals, err := s.repo.FindReferralsByIDs(ctx, input.ReferralIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load referrals")
	}
	if len(referrals) != len(input.ReferralIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more referrals not found")
	}

	var total int64
	for _, referral := range referrals {
		if referral.ReferrerType != input.RecipientType || referral.ReferrerID != input.RecipientID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral belongs to a different recipient")
		}
		if referral.Status != enums.ReferralStatusCompleted {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("referral %s is %s, not completed", referral.ID, referral.Status))
		}
		if referral.CommissionPaid {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("referral %s commission already paid", referral.ID))
		}
		total += referral.CommissionKobo
	}
	if total != input.AmountKobo {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %d does not match owed commission %d", input.AmountKobo, total))
	}

	now := time.Now().UTC()
	payment := &models.CommissionPayment{
		RecipientType: input.RecipientType,
		RecipientID:   input.RecipientID,
		AmountKobo:    input.AmountKobo,
		Method:        input.Method,
		Reference:     input.Reference,
		Status:        enums.CommissionPaymentStatusCompleted,
		ReferralIDs:   input.ReferralIDs,
		Notes:         input.Notes,
		ProcessedBy:   input.ProcessedBy,
		ProcessedAt:   now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateCommissionPayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create commission payment")
		}
		changed, err := repo.MarkReferralsPaid(ctx, input.ReferralIDs, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark referrals paid")
		}
		if changed != int64(len(input.ReferralIDs)) {
			// Someone paid part of this batch between our read and the
			// guarded update; rolling back keeps every referral unpaid here.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "referral batch changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCommissionPaid()
	s.metrics.AddAmountMoved("commission", payment.AmountKobo)
	s.logger.Info(ctx, fmt.Sprintf("commission paid: %d kobo across %d referrals", payment.AmountKobo, len(input.ReferralIDs)))
	return payment, nil
}

func (s *service) ListPayments(ctx context.Context, recipientType enums.ReferrerType, recipientID uuid.UUID) ([]models.CommissionPayment, error) {
	if !recipientType.IsValid() || recipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient type and id required")
	}
	payments, err := s.repo.ListCommissionPayments(ctx, recipientType, recipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list commission payments")
	}
	return payments, nil
}

func (s *service) GetSetting(ctx context.Context, referrerType enums.ReferrerType) (*models.CommissionSetting, error) {
	if !referrerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid referrer type")
	}
	setting, err := s.repo.GetSetting(ctx, referrerType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no commission setting for referrer type")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load commission setting")
	}
	return setting, nil
}

func (s *service) UpdateSetting(ctx context.Context, input UpdateSettingInput) (*models.CommissionSetting, error) {
	if !input.ReferrerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid referrer type")
	}
	if input.AmountKobo < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission amount cannot be negative")
	}
	if input.UpdatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "updated by required")
	}

	setting := &models.CommissionSetting{
		ReferrerType: input.ReferrerType,
		AmountKobo:   input.AmountKobo,
		Active:       input.Active,
		UpdatedBy:    &input.UpdatedBy,
	}
	if err := s.repo.UpsertSetting(ctx, setting); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save commission setting")
	}
	return s.GetSetting(ctx, input.ReferrerType)
}

func (s *service) loadReferral(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	referral, err := s.repo.FindReferralByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referral not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load referral")
	}
	return referral, nil
}

func validatePayInput(input PayCommissionInput) error {
	if !input.RecipientType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid recipient type")
	}
	if input.RecipientID == uuid.Nil || input.ProcessedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id and processed by required")
	}
	if len(input.ReferralIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one referral required")
	}
	if input.AmountKobo <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Method == "" || input.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "method and reference required")
	}
	seen := map[uuid.UUID]struct{}{}
	for _, id := range input.ReferralIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "referral id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate referral id in batch")
		}
		seen[id] = struct{}{}
	}
	return nil
}
