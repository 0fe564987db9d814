package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/middleware"
	"github.com/sokoplace/sokoplace-backend/api/responses"
	walletsvc "github.com/sokoplace/sokoplace-backend/internal/wallets"
	"github.com/sokoplace/sokoplace-backend/pkg/db/models"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type walletResponse struct {
	VendorID    uuid.UUID `json:"vendor_id"`
	BalanceKobo int64     `json:"balance_kobo"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type walletTransactionResponse struct {
	ID               uuid.UUID  `json:"id"`
	Type             string     `json:"type"`
	AmountKobo       int64      `json:"amount_kobo"`
	BalanceAfterKobo int64      `json:"balance_after_kobo"`
	Reference        string     `json:"reference"`
	EscrowID         *uuid.UUID `json:"escrow_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toWalletResponse(wallet models.VendorWallet) walletResponse {
	return walletResponse{
		VendorID:    wallet.VendorID,
		BalanceKobo: wallet.BalanceKobo,
		UpdatedAt:   wallet.UpdatedAt,
	}
}

func toWalletTransactionResponses(txns []models.WalletTransaction) []walletTransactionResponse {
	out := make([]walletTransactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, walletTransactionResponse{
			ID:               txn.ID,
			Type:             txn.Type.String(),
			AmountKobo:       txn.AmountKobo,
			BalanceAfterKobo: txn.BalanceAfterKobo,
			Reference:        txn.Reference,
			EscrowID:         txn.EscrowID,
			CreatedAt:        txn.CreatedAt,
		})
	}
	return out
}

// VendorWallet returns the calling vendor's wallet balance.
func VendorWallet(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		vendorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.GetWallet(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toWalletResponse(*wallet))
	}
}

// VendorWalletTransactions lists the calling vendor's ledger lines.
func VendorWalletTransactions(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		vendorID, err := middleware.ActorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := svc.ListTransactions(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"transactions": toWalletTransactionResponses(txns)})
	}
}

// AdminWallet returns any vendor's wallet balance.
func AdminWallet(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		vendorID, err := parseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.GetWallet(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toWalletResponse(*wallet))
	}
}

// AdminWalletTransactions lists any vendor's ledger lines.
func AdminWalletTransactions(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		vendorID, err := parseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := svc.ListTransactions(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"transactions": toWalletTransactionResponses(txns)})
	}
}

type reconcileResponse struct {
	VendorID    uuid.UUID `json:"vendor_id"`
	BalanceKobo int64     `json:"balance_kobo"`
	LedgerKobo  int64     `json:"ledger_kobo"`
	Consistent  bool      `json:"consistent"`
}

// AdminWalletReconcile compares a wallet's cached balance against its ledger.
func AdminWalletReconcile(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		vendorID, err := parseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reconcile(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, reconcileResponse{
			VendorID:    vendorID,
			BalanceKobo: result.BalanceKobo,
			LedgerKobo:  result.LedgerKobo,
			Consistent:  result.Consistent,
		})
	}
}
