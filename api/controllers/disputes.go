package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	"github.com/sokoplace/sokoplace-backend/api/validators"
	disputesvc "github.com/sokoplace/sokoplace-backend/internal/disputes"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	"github.com/sokoplace/sokoplace-backend/pkg/enums"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type disputeResponse struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         uuid.UUID  `json:"order_id"`
	EscrowID        *uuid.UUID `json:"escrow_id,omitempty"`
	FilerID         uuid.UUID  `json:"filer_id"`
	FilerType       string     `json:"filer_type"`
	Type            string     `json:"type"`
	Description     string     `json:"description"`
	Evidence        []string   `json:"evidence,omitempty"`
	Status          string     `json:"status"`
	Ruling          *string    `json:"ruling,omitempty"`
	ResolvedBy      *uuid.UUID `json:"resolved_by,omitempty"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toDisputeResponse(dispute models.Dispute) disputeResponse {
	resp := disputeResponse{
		ID:              dispute.ID,
		OrderID:         dispute.OrderID,
		EscrowID:        dispute.EscrowID,
		FilerID:         dispute.FilerID,
		FilerType:       dispute.FilerType.String(),
		Type:            dispute.Type.String(),
		Description:     dispute.Description,
		Evidence:        dispute.Evidence,
		Status:          dispute.Status.String(),
		ResolvedBy:      dispute.ResolvedBy,
		ResolutionNotes: dispute.ResolutionNotes,
		ResolvedAt:      dispute.ResolvedAt,
		CreatedAt:       dispute.CreatedAt,
	}
	if dispute.Ruling != nil {
		ruling := dispute.Ruling.String()
		resp.Ruling = &ruling
	}
	return resp
}

func toDisputeResponses(disputes []models.Dispute) []disputeResponse {
	out := make([]disputeResponse, 0, len(disputes))
	for _, dispute := range disputes {
		out = append(out, toDisputeResponse(dispute))
	}
	return out
}

type fileDisputeRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	Type        string    `json:"type" validate:"required"`
	Description string    `json:"description" validate:"required,min=10,max=2000"`
	Evidence    []string  `json:"evidence,omitempty" validate:"omitempty,max=10,dive,url"`
}

// FileDispute opens a dispute against an order, freezing its escrow.
func FileDispute(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		filerID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filerType, err := filerTypeFromRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload fileDisputeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disputeType, err := enums.ParseDisputeType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute type"))
			return
		}

		dispute, err := svc.File(r.Context(), disputesvc.FileInput{
			OrderID:     payload.OrderID,
			FilerID:     filerID,
			FilerType:   filerType,
			Type:        disputeType,
			Description: payload.Description,
			Evidence:    payload.Evidence,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeResponse(*dispute))
	}
}

// GetDispute returns one dispute. Non-admin callers must be the filer.
func GetDispute(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		actorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.GetByID(r.Context(), disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if middleware.RoleFromContext(r.Context()) != "admin" && dispute.FilerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "dispute does not belong to you"))
			return
		}

		responses.WriteSuccess(w, toDisputeResponse(*dispute))
	}
}

// OrderDisputes lists every dispute filed against an order.
func OrderDisputes(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disputes, err := svc.ListByOrderID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"disputes": toDisputeResponses(disputes)})
	}
}

type disputeListResponse struct {
	Disputes   []disputeResponse `json:"disputes"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// AdminListDisputes pages disputes by status for the admin queue.
func AdminListDisputes(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		rawStatus := strings.TrimSpace(r.URL.Query().Get("status"))
		if rawStatus == "" {
			rawStatus = enums.DisputeStatusOpen.String()
		}
		status, err := enums.ParseDisputeStatus(rawStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute status"))
			return
		}
		params, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disputes, nextCursor, err := svc.ListByStatus(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, disputeListResponse{
			Disputes:   toDisputeResponses(disputes),
			NextCursor: nextCursor,
		})
	}
}

// AdminReviewDispute moves an open dispute to under review.
func AdminReviewDispute(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.StartReview(r.Context(), disputeID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toDisputeResponse(*dispute))
	}
}

type resolveDisputeRequest struct {
	Ruling string `json:"ruling" validate:"required"`
	Notes  string `json:"notes" validate:"required,min=10,max=2000"`
}

// AdminResolveDispute applies the admin ruling, settling the frozen escrow.
func AdminResolveDispute(svc disputesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		adminID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ruling, err := enums.ParseDisputeRuling(payload.Ruling)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ruling"))
			return
		}

		dispute, err := svc.Resolve(r.Context(), disputesvc.ResolveInput{
			DisputeID: disputeID,
			AdminID:   adminID,
			Ruling:    ruling,
			Notes:     payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toDisputeResponse(*dispute))
	}
}

func filerTypeFromRole(role string) (enums.FilerType, error) {
	switch role {
	case "buyer":
		return enums.FilerTypeBuyer, nil
	case "vendor":
		return enums.FilerTypeVendor, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "only buyers and vendors can file disputes")
	}
}
