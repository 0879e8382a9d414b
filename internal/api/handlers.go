package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/weddify/binks/internal/api/middleware"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/domain/payment"
	"github.com/weddify/binks/internal/domain/product"
	"github.com/weddify/binks/internal/domain/stock"
	"github.com/weddify/binks/internal/infrastructure/redisx"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = apperr.BadRequest("Invalid request body")

// Services are the domain services the handlers call into.
type Services struct {
	Products *product.Service
	Orders   *order.Service
	Payments *payment.Service
	Coupons  *coupon.Service
	Stock    *stock.Service
}

// Guard remembers checkout idempotency keys and claims webhook deliveries.
// *redisx.Guard implements it.
type Guard interface {
	LookupOrder(ctx context.Context, scope, key string) (string, bool, error)
	RememberOrder(ctx context.Context, scope, key, orderID string) error
	FirstDelivery(ctx context.Context, orderID, status string) (bool, error)
	Forget(ctx context.Context, orderID, status string) error
}

type Handlers struct {
	products *product.Service
	orders   *order.Service
	payments *payment.Service
	coupons  *coupon.Service
	stock    *stock.Service

	guard         Guard
	webhookSecret string
}

// NewHandlers wires the HTTP handlers. guard may be nil.
func NewHandlers(svc Services, guard Guard, webhookSecret string) *Handlers {
	if guard == nil {
		guard = (*redisx.Guard)(nil)
	}
	return &Handlers{
		products:      svc.Products,
		orders:        svc.Orders,
		payments:      svc.Payments,
		coupons:       svc.Coupons,
		stock:         svc.Stock,
		guard:         guard,
		webhookSecret: webhookSecret,
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps a service error to its status code and {"error","code"} body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.Printf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	respondJSON(w, apperr.HTTPStatus(kind), map[string]string{
		"error": apperr.Message(err),
		"code":  string(kind),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("Request body is required")
		}
		return errInvalidBody
	}
	return nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.BadRequest("invalid " + name)
	}
	return n, nil
}

func isAdmin(r *http.Request) bool {
	claims, _ := middleware.GetUserFromContext(r.Context())
	return claims.IsAdmin()
}
