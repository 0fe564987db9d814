package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	escrowsvc "github.com/sokoplace/sokoplace-backend/internal/escrow"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
)

type stubEscrowService struct {
	releaseErr error
	refundErr  error
	released   []escrowsvc.ReleaseInput
	refunded   []escrowsvc.RefundInput
}

func (s *stubEscrowService) Hold(ctx context.Context, tx *gorm.DB, input escrowsvc.HoldInput) (*models.EscrowTransaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubEscrowService) Release(ctx context.Context, input escrowsvc.ReleaseInput) error {
	s.released = append(s.released, input)
	return s.releaseErr
}

func (s *stubEscrowService) ReleaseTx(ctx context.Context, tx *gorm.DB, input escrowsvc.ReleaseInput) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubEscrowService) Refund(ctx context.Context, input escrowsvc.RefundInput) error {
	s.refunded = append(s.refunded, input)
	return s.refundErr
}

func (s *stubEscrowService) RefundTx(ctx context.Context, tx *gorm.DB, input escrowsvc.RefundInput) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubEscrowService) Freeze(ctx context.Context, tx *gorm.DB, escrowID, disputeID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *stubEscrowService) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow not found")
}

func escrowActionRequest(t *testing.T, action string, escrowID uuid.UUID, adminID uuid.UUID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/escrows/"+escrowID.String()+"/"+action, strings.NewReader(body))
	req = req.WithContext(actorContext(adminID, "admin"))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("escrowId", escrowID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestAdminReleaseEscrow(t *testing.T) {
	t.Parallel()

	stub := &stubEscrowService{}
	escrowID := uuid.New()
	adminID := uuid.New()

	rec := httptest.NewRecorder()
	req := escrowActionRequest(t, "release", escrowID, adminID, `{"notes":"vendor proved delivery out of band"}`)
	AdminReleaseEscrow(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(stub.released) != 1 {
		t.Fatalf("releases = %d, want 1", len(stub.released))
	}
	input := stub.released[0]
	if input.EscrowID != escrowID {
		t.Fatalf("escrow id = %s, want %s", input.EscrowID, escrowID)
	}
	if input.ReleaseType != enums.ReleaseTypeAdminOverride {
		t.Fatalf("release type = %s, want admin_override", input.ReleaseType)
	}
	if input.RequestedBy != adminID {
		t.Fatalf("requested by = %s, want %s", input.RequestedBy, adminID)
	}
	if input.Notes == nil || *input.Notes == "" {
		t.Fatal("notes not forwarded")
	}
}

func TestAdminReleaseEscrowRequiresNotes(t *testing.T) {
	t.Parallel()

	stub := &stubEscrowService{}
	rec := httptest.NewRecorder()
	req := escrowActionRequest(t, "release", uuid.New(), uuid.New(), `{}`)
	AdminReleaseEscrow(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(stub.released) != 0 {
		t.Fatal("service called despite missing notes")
	}
}

func TestAdminReleaseEscrowSurfacesStateConflict(t *testing.T) {
	t.Parallel()

	stub := &stubEscrowService{releaseErr: pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released")}
	rec := httptest.NewRecorder()
	req := escrowActionRequest(t, "release", uuid.New(), uuid.New(), `{"notes":"second attempt"}`)
	AdminReleaseEscrow(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestAdminRefundEscrow(t *testing.T) {
	t.Parallel()

	stub := &stubEscrowService{}
	escrowID := uuid.New()
	adminID := uuid.New()

	rec := httptest.NewRecorder()
	req := escrowActionRequest(t, "refund", escrowID, adminID, `{"reason":"vendor never shipped"}`)
	AdminRefundEscrow(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(stub.refunded) != 1 {
		t.Fatalf("refunds = %d, want 1", len(stub.refunded))
	}
	input := stub.refunded[0]
	if input.EscrowID != escrowID {
		t.Fatalf("escrow id = %s, want %s", input.EscrowID, escrowID)
	}
	if input.Reason != "vendor never shipped" {
		t.Fatalf("reason = %q", input.Reason)
	}
	if input.RequestedBy != adminID {
		t.Fatalf("requested by = %s, want %s", input.RequestedBy, adminID)
	}
}

func TestAdminRefundEscrowRequiresReason(t *testing.T) {
	t.Parallel()

	stub := &stubEscrowService{}
	rec := httptest.NewRecorder()
	req := escrowActionRequest(t, "refund", uuid.New(), uuid.New(), `{}`)
	AdminRefundEscrow(stub, controllerTestLogger(t))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(stub.refunded) != 0 {
		t.Fatal("service called despite missing reason")
	}
}
