package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/weddify/binks/internal/api/middleware"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/order"
	"github.com/weddify/binks/internal/model"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var errOrderForbidden = apperr.New(apperr.KindForbidden, "Forbidden")

type listOrdersResponse struct {
	Orders []model.Order `json:"orders"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type updateOrderRequest struct {
	Status model.OrderStatus `json:"status"`
}

// CreateOrder is checkout. A repeated Idempotency-Key from the same caller
// returns the order the first request created.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.Header.Get(IdempotencyKeyHeader)

	var in order.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	in.UserID = middleware.GetUserID(ctx)
	scope := idempotencyScope(in)

	if orderID, ok, err := h.guard.LookupOrder(ctx, scope, key); err != nil {
		log.Printf("[API] Idempotency lookup failed: %v", err)
	} else if ok {
		existing, err := h.orders.Get(ctx, orderID)
		if err == nil {
			if !mayReplay(r, existing, in) {
				respondError(w, r, errOrderForbidden)
				return
			}
			respondJSON(w, http.StatusOK, existing)
			return
		}
		log.Printf("[API] Idempotent order %s could not be loaded: %v", orderID, err)
	}

	o, err := h.orders.Create(ctx, in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.guard.RememberOrder(ctx, scope, key, o.ID); err != nil {
		log.Printf("[API] Failed to remember idempotency key for %s: %v", o.ID, err)
	}
	respondJSON(w, http.StatusCreated, o)
}

// ListOrders returns the caller's orders; admins see every order.
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if limit == 0 || limit > 100 {
		limit = 20
	}

	filter := model.OrderFilter{
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if !isAdmin(r) {
		filter.UserID = middleware.GetUserID(r.Context())
	}

	orders, total, err := h.orders.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	respondJSON(w, http.StatusOK, listOrdersResponse{Orders: orders, Total: total, Limit: limit, Offset: offset})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.authorizedOrder(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.authorizedOrder(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	o, err = h.orders.Cancel(r.Context(), o.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateOrder is the admin status override.
func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Status == "" {
		respondError(w, r, apperr.BadRequest("status is required"))
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// authorizedOrder loads the {id} order if the caller may see it.
func (h *Handlers) authorizedOrder(r *http.Request) (*model.Order, error) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if !canView(r, o) {
		return nil, errOrderForbidden
	}
	return o, nil
}

// canView allows admins, the owning user, and anyone holding the invoice id
// of a guest order.
func canView(r *http.Request, o *model.Order) bool {
	if o.UserID == "" || isAdmin(r) {
		return true
	}
	return o.UserID == middleware.GetUserID(r.Context())
}

// mayReplay reports whether the caller may receive the order an earlier
// request with the same Idempotency-Key created. Guests must repeat the
// buyer email.
func mayReplay(r *http.Request, o *model.Order, in order.CreateInput) bool {
	if !canView(r, o) {
		return false
	}
	return o.UserID != "" || strings.EqualFold(o.BuyerEmail, strings.TrimSpace(in.BuyerEmail))
}

// idempotencyScope is the caller an Idempotency-Key belongs to: the user, or
// for guests the buyer email.
func idempotencyScope(in order.CreateInput) string {
	if in.UserID != "" {
		return "user:" + in.UserID
	}
	return "guest:" + strings.ToLower(strings.TrimSpace(in.BuyerEmail))
}
