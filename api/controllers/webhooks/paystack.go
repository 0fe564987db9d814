package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sokoplace/sokoplace-backend/api/responses"
	ordersvc "github.com/sokoplace/sokoplace-backend/internal/orders"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, reference string) (*ordersvc.ConfirmResult, error)
}

type signatureVerifier interface {
	ValidSignature(body []byte, signature string) bool
}

type replayGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// PaystackWebhook confirms payments from Paystack's charge events. The
// settlement itself is exactly-once at the database layer; the redis guard
// just short-circuits redelivered events.
func PaystackWebhook(svc paymentConfirmer, verifier signatureVerifier, guard replayGuard, guardTTL time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paystack client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get("x-paystack-signature"))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "paystack signature missing"))
			return
		}
		if !verifier.ValidSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "paystack signature invalid"))
			return
		}

		var event paystackEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if event.Event != "charge.success" {
			responses.WriteSuccess(w, nil)
			return
		}
		if event.Data.Reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event reference missing"))
			return
		}

		guardKey := ""
		if guard != nil {
			guardKey = guard.IdempotencyKey("paystack-webhook", event.Data.Reference)
			fresh, guardErr := guard.SetNX(ctx, guardKey, "1", guardTTL)
			if guardErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, guardErr, "check replay guard"))
				return
			}
			if !fresh {
				responses.WriteSuccess(w, nil)
				return
			}
		}

		result, err := svc.ConfirmPayment(ctx, event.Data.Reference)
		if err != nil {
			if guard != nil && guardKey != "" {
				_ = guard.Del(ctx, guardKey)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paystack charge %s confirmed with outcome %s", event.Data.Reference, result.Outcome))
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(result.Outcome)})
	}
}
