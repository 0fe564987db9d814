package disputes

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokoplace/sokoplace-backend/internal/escrow"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
	"github.com/sokoplace/sokoplace-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeDisputeRepo struct {
	disputes map[uuid.UUID]*models.Dispute
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: map[uuid.UUID]*models.Dispute{}}
}

func (f *fakeDisputeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeDisputeRepo) Create(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	f.disputes[dispute.ID] = dispute
	return nil
}

func (f *fakeDisputeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, ok := f.disputes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *dispute
	return &cp, nil
}

func (f *fakeDisputeRepo) FindOpenByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	for _, dispute := range f.disputes {
		if dispute.OrderID == orderID && dispute.Status != enums.DisputeStatusResolved {
			cp := *dispute
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDisputeRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	var out []models.Dispute
	for _, dispute := range f.disputes {
		if dispute.OrderID == orderID {
			out = append(out, *dispute)
		}
	}
	return out, nil
}

func (f *fakeDisputeRepo) ListByStatus(ctx context.Context, status enums.DisputeStatus, params pagination.Params) ([]models.Dispute, string, error) {
	var out []models.Dispute
	for _, dispute := range f.disputes {
		if dispute.Status == status {
			out = append(out, *dispute)
		}
	}
	return out, "", nil
}

func (f *fakeDisputeRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.DisputeStatus, updates map[string]any) (bool, error) {
	dispute, ok := f.disputes[id]
	if !ok || dispute.Status != from {
		return false, nil
	}
	dispute.Status = to
	if ruling, ok := updates["ruling"].(enums.DisputeRuling); ok {
		dispute.Ruling = &ruling
	}
	if admin, ok := updates["resolved_by"].(uuid.UUID); ok {
		dispute.ResolvedBy = &admin
	}
	if notes, ok := updates["resolution_notes"].(string); ok {
		dispute.ResolutionNotes = &notes
	}
	if at, ok := updates["resolved_at"].(time.Time); ok {
		dispute.ResolvedAt = &at
	}
	return true, nil
}

type fakeOrderFlow struct {
	orders    map[uuid.UUID]*models.Order
	disputed  []uuid.UUID
	completed []uuid.UUID
}

func newFakeOrderFlow() *fakeOrderFlow {
	return &fakeOrderFlow{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrderFlow) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderFlow) MarkDisputed(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, ok := f.orders[orderID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order.Status = enums.OrderStatusDisputed
	f.disputed = append(f.disputed, orderID)
	return nil
}

func (f *fakeOrderFlow) CompleteFromDispute(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	order, ok := f.orders[orderID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order.Status = enums.OrderStatusDelivered
	f.completed = append(f.completed, orderID)
	return nil
}

type fakeLedger struct {
	escrows  map[uuid.UUID]*models.EscrowTransaction
	frozen   []uuid.UUID
	released []escrow.ReleaseInput
	refunded []escrow.RefundInput
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{escrows: map[uuid.UUID]*models.EscrowTransaction{}}
}

func (f *fakeLedger) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	for _, e := range f.escrows {
		if e.OrderID == orderID {
			return e, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
}

func (f *fakeLedger) Freeze(ctx context.Context, tx *gorm.DB, escrowID, disputeID uuid.UUID) error {
	e, ok := f.escrows[escrowID]
	if !ok || e.Status != enums.EscrowStatusHeld {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow cannot be frozen")
	}
	e.Status = enums.EscrowStatusDisputed
	e.DisputeID = &disputeID
	f.frozen = append(f.frozen, escrowID)
	return nil
}

func (f *fakeLedger) ReleaseTx(ctx context.Context, tx *gorm.DB, input escrow.ReleaseInput) error {
	e, ok := f.escrows[input.EscrowID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
	}
	e.Status = enums.EscrowStatusReleased
	f.released = append(f.released, input)
	return nil
}

func (f *fakeLedger) RefundTx(ctx context.Context, tx *gorm.DB, input escrow.RefundInput) error {
	e, ok := f.escrows[input.EscrowID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
	}
	e.Status = enums.EscrowStatusRefunded
	f.refunded = append(f.refunded, input)
	return nil
}

func newTestService(t *testing.T, repo *fakeDisputeRepo, flow *fakeOrderFlow, ledger *fakeLedger) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "disputes-test", Output: io.Discard})
	svc, err := NewService(repo, flow, ledger, fakeTxRunner{}, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func deliveredOrder(flow *fakeOrderFlow, ledger *fakeLedger) *models.Order {
	order := &models.Order{
		ID:       uuid.New(),
		BuyerID:  uuid.New(),
		VendorID: uuid.New(),
		Status:   enums.OrderStatusDelivered,
	}
	flow.orders[order.ID] = order
	e := &models.EscrowTransaction{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  enums.EscrowStatusHeld,
	}
	ledger.escrows[e.ID] = e
	return order
}

func fileInput(order *models.Order) FileInput {
	return FileInput{
		OrderID:     order.ID,
		FilerID:     order.BuyerID,
		FilerType:   enums.FilerTypeBuyer,
		Type:        enums.DisputeTypeDamagedItem,
		Description: "screen cracked on arrival",
		Evidence:    []string{"https://cdn.example.com/evidence/1.jpg"},
	}
}

func TestFileDispute(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	dispute, err := svc.File(context.Background(), fileInput(order))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if dispute.Status != enums.DisputeStatusOpen {
		t.Fatalf("status = %s", dispute.Status)
	}
	if len(ledger.frozen) != 1 {
		t.Fatal("escrow not frozen")
	}
	if len(flow.disputed) != 1 {
		t.Fatal("order not marked disputed")
	}
	if dispute.EscrowID == nil {
		t.Fatal("dispute not linked to escrow")
	}
}

func TestFileDisputeOnePerOrder(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	if _, err := svc.File(context.Background(), fileInput(order)); err != nil {
		t.Fatalf("first File: %v", err)
	}

	input := fileInput(order)
	input.FilerID = order.VendorID
	input.FilerType = enums.FilerTypeVendor
	input.Type = enums.DisputeTypeBuyerUnreachable
	_, err := svc.File(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestFileDisputeGuards(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)

	t.Run("wrong filer", func(t *testing.T) {
		input := fileInput(order)
		input.FilerID = uuid.New()
		_, err := svc.File(context.Background(), input)
		if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
			t.Fatalf("got %v, want forbidden", err)
		}
	})

	t.Run("settled escrow", func(t *testing.T) {
		settled := deliveredOrder(flow, ledger)
		e, _ := ledger.GetByOrderID(context.Background(), settled.ID)
		e.Status = enums.EscrowStatusReleased
		_, err := svc.File(context.Background(), fileInput(settled))
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("got %v, want state conflict", err)
		}
	})

	t.Run("missing description", func(t *testing.T) {
		input := fileInput(order)
		input.Description = ""
		_, err := svc.File(context.Background(), input)
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("got %v, want validation error", err)
		}
	})
}

func TestResolveReleaseToVendor(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	dispute, err := svc.File(context.Background(), fileInput(order))
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	admin := uuid.New()
	resolved, err := svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		AdminID:   admin,
		Ruling:    enums.DisputeRulingReleaseToVendor,
		Notes:     "proof of delivery verified",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != enums.DisputeStatusResolved {
		t.Fatalf("status = %s", resolved.Status)
	}
	if resolved.Ruling == nil || *resolved.Ruling != enums.DisputeRulingReleaseToVendor {
		t.Fatalf("ruling = %v", resolved.Ruling)
	}
	if len(ledger.released) != 1 || ledger.released[0].ReleaseType != enums.ReleaseTypeDisputeResolution {
		t.Fatalf("releases = %+v", ledger.released)
	}
	if len(flow.completed) != 1 {
		t.Fatal("order not closed as delivered")
	}
}

func TestResolveRefundBuyer(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	dispute, err := svc.File(context.Background(), fileInput(order))
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Ruling:    enums.DisputeRulingRefundBuyer,
		Notes:     "item confirmed damaged",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != enums.DisputeStatusResolved {
		t.Fatalf("status = %s", resolved.Status)
	}
	if len(ledger.refunded) != 1 {
		t.Fatalf("refunds = %d, want 1", len(ledger.refunded))
	}
	if len(flow.completed) != 0 {
		t.Fatal("refund ruling completed the order")
	}
}

func TestResolveTwiceRejected(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	dispute, err := svc.File(context.Background(), fileInput(order))
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	input := ResolveInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Ruling:    enums.DisputeRulingRefundBuyer,
		Notes:     "refund approved",
	}
	if _, err := svc.Resolve(context.Background(), input); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	_, err = svc.Resolve(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second Resolve: got %v, want state conflict", err)
	}
	if len(ledger.refunded) != 1 {
		t.Fatalf("refunds = %d, want 1", len(ledger.refunded))
	}
}

func TestStartReview(t *testing.T) {
	repo := newFakeDisputeRepo()
	flow := newFakeOrderFlow()
	ledger := newFakeLedger()
	svc := newTestService(t, repo, flow, ledger)

	order := deliveredOrder(flow, ledger)
	dispute, err := svc.File(context.Background(), fileInput(order))
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	reviewed, err := svc.StartReview(context.Background(), dispute.ID, uuid.New())
	if err != nil {
		t.Fatalf("StartReview: %v", err)
	}
	if reviewed.Status != enums.DisputeStatusUnderReview {
		t.Fatalf("status = %s", reviewed.Status)
	}

	// Under-review disputes can still be resolved.
	if _, err := svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Ruling:    enums.DisputeRulingReleaseToVendor,
		Notes:     "vendor provided tracking proof",
	}); err != nil {
		t.Fatalf("Resolve after review: %v", err)
	}

	if _, err := svc.StartReview(context.Background(), dispute.ID, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatal("review of resolved dispute allowed")
	}
}
