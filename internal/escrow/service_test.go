package escrow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/wallets"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeEscrowRepo struct {
	escrows  map[uuid.UUID]*models.EscrowTransaction
	releases []models.EscrowRelease
}

func newFakeEscrowRepo() *fakeEscrowRepo {
	return &fakeEscrowRepo{escrows: map[uuid.UUID]*models.EscrowTransaction{}}
}

func (f *fakeEscrowRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeEscrowRepo) Create(ctx context.Context, escrow *models.EscrowTransaction) error {
	if escrow.ID == uuid.Nil {
		escrow.ID = uuid.New()
	}
	f.escrows[escrow.ID] = escrow
	return nil
}

func (f *fakeEscrowRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	escrow, ok := f.escrows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *escrow
	return &cp, nil
}

func (f *fakeEscrowRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	for _, escrow := range f.escrows {
		if escrow.OrderID == orderID {
			cp := *escrow
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEscrowRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.EscrowStatus, updates map[string]any) (bool, error) {
	escrow, ok := f.escrows[id]
	if !ok || escrow.Status != from {
		return false, nil
	}
	escrow.Status = to
	if disputeID, ok := updates["dispute_id"].(uuid.UUID); ok {
		escrow.DisputeID = &disputeID
	}
	return true, nil
}

func (f *fakeEscrowRepo) CreateRelease(ctx context.Context, release *models.EscrowRelease) error {
	f.releases = append(f.releases, *release)
	return nil
}

func (f *fakeEscrowRepo) ListReleases(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowRelease, error) {
	var out []models.EscrowRelease
	for _, rel := range f.releases {
		if rel.EscrowID == escrowID {
			out = append(out, rel)
		}
	}
	return out, nil
}

type fakeWalletRepo struct {
	balances map[uuid.UUID]int64
	lines    []models.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{balances: map[uuid.UUID]int64{}}
}

func (f *fakeWalletRepo) WithTx(tx *gorm.DB) wallets.Repository { return f }

func (f *fakeWalletRepo) EnsureWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	if _, ok := f.balances[vendorID]; !ok {
		f.balances[vendorID] = 0
	}
	return &models.VendorWallet{VendorID: vendorID, BalanceKobo: f.balances[vendorID]}, nil
}

func (f *fakeWalletRepo) FindWallet(ctx context.Context, vendorID uuid.UUID) (*models.VendorWallet, error) {
	balance, ok := f.balances[vendorID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.VendorWallet{VendorID: vendorID, BalanceKobo: balance}, nil
}

func (f *fakeWalletRepo) ApplyDelta(ctx context.Context, vendorID uuid.UUID, deltaKobo int64) (*models.VendorWallet, error) {
	if _, ok := f.balances[vendorID]; !ok {
		return nil, gorm.ErrRecordNotFound
	}
	f.balances[vendorID] += deltaKobo
	return &models.VendorWallet{VendorID: vendorID, BalanceKobo: f.balances[vendorID]}, nil
}

func (f *fakeWalletRepo) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	f.lines = append(f.lines, *txn)
	return nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, vendorID uuid.UUID) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	for _, line := range f.lines {
		if line.VendorID == vendorID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) SumTransactions(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	var sum int64
	for _, line := range f.lines {
		if line.VendorID == vendorID {
			sum += line.AmountKobo
		}
	}
	return sum, nil
}

type fakeOrderSettler struct {
	refunded []uuid.UUID
}

func (f *fakeOrderSettler) MarkRefunded(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	f.refunded = append(f.refunded, orderID)
	return nil
}

func newTestService(t *testing.T, repo *fakeEscrowRepo, walletRepo *fakeWalletRepo, settler *fakeOrderSettler) Service {
	t.Helper()
	svc, err := NewService(repo, walletRepo, settler, fakeTxRunner{}, 1000, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func heldEscrow(repo *fakeEscrowRepo, amountKobo int64) *models.EscrowTransaction {
	fee, vendorAmount := SplitAmount(amountKobo, 1000)
	escrow := &models.EscrowTransaction{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		BuyerID:          uuid.New(),
		VendorID:         uuid.New(),
		AmountKobo:       amountKobo,
		PlatformFeeKobo:  fee,
		VendorAmountKobo: vendorAmount,
		Status:           enums.EscrowStatusHeld,
	}
	repo.escrows[escrow.ID] = escrow
	return escrow
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		feeBps     int
		wantFee    int64
		wantVendor int64
	}{
		{"even split", 100000, 1000, 10000, 90000},
		{"rounds half up", 5, 1000, 1, 4},
		{"rounds down below half", 4, 1000, 0, 4},
		{"zero fee", 100000, 0, 0, 100000},
		{"full fee", 100000, 10000, 100000, 0},
		{"odd amount", 33333, 1500, 5000, 28333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, vendor := SplitAmount(tt.amount, tt.feeBps)
			if fee != tt.wantFee || vendor != tt.wantVendor {
				t.Fatalf("SplitAmount(%d, %d) = (%d, %d), want (%d, %d)",
					tt.amount, tt.feeBps, fee, vendor, tt.wantFee, tt.wantVendor)
			}
			if fee+vendor != tt.amount {
				t.Fatalf("fee %d + vendor %d != amount %d", fee, vendor, tt.amount)
			}
		})
	}
}

func TestHold(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(t, repo, newFakeWalletRepo(), &fakeOrderSettler{})

	input := HoldInput{
		OrderID:    uuid.New(),
		BuyerID:    uuid.New(),
		VendorID:   uuid.New(),
		AmountKobo: 250000,
	}
	escrow, err := svc.Hold(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if escrow.Status != enums.EscrowStatusHeld {
		t.Fatalf("status = %s, want held", escrow.Status)
	}
	if escrow.PlatformFeeKobo != 25000 || escrow.VendorAmountKobo != 225000 {
		t.Fatalf("split = (%d, %d), want (25000, 225000)",
			escrow.PlatformFeeKobo, escrow.VendorAmountKobo)
	}
	if escrow.HeldAt.IsZero() {
		t.Fatal("HeldAt not set")
	}

	if _, err := svc.Hold(context.Background(), nil, input); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second Hold for same order: got %v, want conflict", err)
	}
}

func TestHoldValidation(t *testing.T) {
	svc := newTestService(t, newFakeEscrowRepo(), newFakeWalletRepo(), &fakeOrderSettler{})

	tests := []struct {
		name  string
		input HoldInput
	}{
		{"missing order id", HoldInput{AmountKobo: 1000}},
		{"zero amount", HoldInput{OrderID: uuid.New()}},
		{"negative amount", HoldInput{OrderID: uuid.New(), AmountKobo: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Hold(context.Background(), nil, tt.input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestReleaseCreditsVendorOnce(t *testing.T) {
	repo := newFakeEscrowRepo()
	walletRepo := newFakeWalletRepo()
	svc := newTestService(t, repo, walletRepo, &fakeOrderSettler{})

	escrow := heldEscrow(repo, 100000)
	input := ReleaseInput{
		EscrowID:    escrow.ID,
		ReleaseType: enums.ReleaseTypeManualBuyer,
		RequestedBy: escrow.BuyerID,
	}
	if err := svc.Release(context.Background(), input); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := walletRepo.balances[escrow.VendorID]; got != 90000 {
		t.Fatalf("vendor balance = %d, want 90000", got)
	}
	if len(walletRepo.lines) != 1 {
		t.Fatalf("wallet transactions = %d, want 1", len(walletRepo.lines))
	}
	line := walletRepo.lines[0]
	if line.Type != enums.WalletTransactionTypeSale || line.BalanceAfterKobo != 90000 {
		t.Fatalf("wallet line = %+v", line)
	}
	if len(repo.releases) != 1 {
		t.Fatalf("release audit rows = %d, want 1", len(repo.releases))
	}

	// A repeated release must not credit the wallet again.
	err := svc.Release(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second Release: got %v, want state conflict", err)
	}
	if got := walletRepo.balances[escrow.VendorID]; got != 90000 {
		t.Fatalf("balance after repeat = %d, want 90000", got)
	}
}

func TestReleaseFrozenEscrow(t *testing.T) {
	repo := newFakeEscrowRepo()
	walletRepo := newFakeWalletRepo()
	svc := newTestService(t, repo, walletRepo, &fakeOrderSettler{})

	escrow := heldEscrow(repo, 50000)
	repo.escrows[escrow.ID].Status = enums.EscrowStatusDisputed

	err := svc.Release(context.Background(), ReleaseInput{
		EscrowID:    escrow.ID,
		ReleaseType: enums.ReleaseTypeAutoDelivery,
		RequestedBy: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("release of frozen escrow: got %v, want state conflict", err)
	}

	// The dispute resolution path is allowed through.
	err = svc.Release(context.Background(), ReleaseInput{
		EscrowID:    escrow.ID,
		ReleaseType: enums.ReleaseTypeDisputeResolution,
		RequestedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("dispute resolution release: %v", err)
	}
	if got := walletRepo.balances[escrow.VendorID]; got != 45000 {
		t.Fatalf("vendor balance = %d, want 45000", got)
	}
}

func TestReleaseNotFound(t *testing.T) {
	svc := newTestService(t, newFakeEscrowRepo(), newFakeWalletRepo(), &fakeOrderSettler{})
	err := svc.Release(context.Background(), ReleaseInput{
		EscrowID:    uuid.New(),
		ReleaseType: enums.ReleaseTypeAutoDelivery,
		RequestedBy: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestRefund(t *testing.T) {
	repo := newFakeEscrowRepo()
	settler := &fakeOrderSettler{}
	svc := newTestService(t, repo, newFakeWalletRepo(), settler)

	escrow := heldEscrow(repo, 80000)
	input := RefundInput{
		EscrowID:    escrow.ID,
		Reason:      "delivery failed",
		RequestedBy: uuid.New(),
	}
	if err := svc.Refund(context.Background(), input); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if repo.escrows[escrow.ID].Status != enums.EscrowStatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.escrows[escrow.ID].Status)
	}
	if len(settler.refunded) != 1 || settler.refunded[0] != escrow.OrderID {
		t.Fatalf("refunded orders = %v, want [%s]", settler.refunded, escrow.OrderID)
	}

	err := svc.Refund(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second Refund: got %v, want state conflict", err)
	}
	if len(settler.refunded) != 1 {
		t.Fatalf("order refunded %d times", len(settler.refunded))
	}
}

func TestRefundFrozenEscrow(t *testing.T) {
	repo := newFakeEscrowRepo()
	settler := &fakeOrderSettler{}
	svc := newTestService(t, repo, newFakeWalletRepo(), settler)

	escrow := heldEscrow(repo, 60000)
	repo.escrows[escrow.ID].Status = enums.EscrowStatusDisputed

	input := RefundInput{EscrowID: escrow.ID, Reason: "item not as described", RequestedBy: uuid.New()}
	err := svc.Refund(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("refund of frozen escrow: got %v, want state conflict", err)
	}

	if err := svc.Refund(context.Background(), input.ResolveDispute()); err != nil {
		t.Fatalf("dispute resolution refund: %v", err)
	}
	if repo.escrows[escrow.ID].Status != enums.EscrowStatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.escrows[escrow.ID].Status)
	}
}

func TestFreeze(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(t, repo, newFakeWalletRepo(), &fakeOrderSettler{})

	escrow := heldEscrow(repo, 40000)
	disputeID := uuid.New()
	if err := svc.Freeze(context.Background(), nil, escrow.ID, disputeID); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	frozen := repo.escrows[escrow.ID]
	if frozen.Status != enums.EscrowStatusDisputed {
		t.Fatalf("status = %s, want disputed", frozen.Status)
	}
	if frozen.DisputeID == nil || *frozen.DisputeID != disputeID {
		t.Fatalf("dispute id = %v, want %s", frozen.DisputeID, disputeID)
	}

	// Released escrows cannot be frozen.
	frozen.Status = enums.EscrowStatusReleased
	err := svc.Freeze(context.Background(), nil, escrow.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("freeze of released escrow: got %v, want state conflict", err)
	}
}

func TestGetByOrderID(t *testing.T) {
	repo := newFakeEscrowRepo()
	svc := newTestService(t, repo, newFakeWalletRepo(), &fakeOrderSettler{})

	escrow := heldEscrow(repo, 20000)
	got, err := svc.GetByOrderID(context.Background(), escrow.OrderID)
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if got.ID != escrow.ID {
		t.Fatalf("escrow id = %s, want %s", got.ID, escrow.ID)
	}

	if _, err := svc.GetByOrderID(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown order: got %v, want not found", err)
	}
}
