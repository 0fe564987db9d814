package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

// Service exposes read and audit operations on vendor wallets. Writes go
// through the escrow ledger only.
type Service interface {
	// GetWallet returns the vendor's wallet, creating a zero-balance row on
	// first access.
	GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error)
	ListTransactions(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error)
	// Reconcile checks the cached balance against the transaction log.
	Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconcileResult, error)
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// ReconcileResult compares the wallet's cached balance with the sum of its
// transaction lines.
type ReconcileResult struct {
	BalanceKobo int64
	LedgerKobo  int64
	Consistent  bool
}

// NewService wires the wallets read service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallets repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) GetWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	wallet, err := s.repo.EnsureWallet(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load vendor wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	transactions, err := s.repo.ListTransactions(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	return transactions, nil
}

func (s *service) Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconcileResult, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	wallet, err := s.repo.FindWallet(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load vendor wallet")
	}
	ledger, err := s.repo.SumTransactions(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum wallet transactions")
	}

	result := &ReconcileResult{
		BalanceKobo: wallet.BalanceKobo,
		LedgerKobo:  ledger,
		Consistent:  wallet.BalanceKobo == ledger,
	}
	if !result.Consistent {
		ctx = s.logger.WithVendorID(ctx, vendorID.String())
		s.logger.Warn(ctx, fmt.Sprintf("wallet balance %d diverges from ledger %d", wallet.BalanceKobo, ledger))
	}
	return result, nil
}
