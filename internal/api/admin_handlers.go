package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/weddify/binks/internal/api/middleware"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/domain/coupon"
	"github.com/weddify/binks/internal/model"
)

type validateCouponRequest struct {
	Code  string `json:"code"`
	Total int64  `json:"total"`
}

type validateCouponResponse struct {
	Valid    bool             `json:"valid"`
	Code     string           `json:"code"`
	Type     model.CouponType `json:"type"`
	Value    int64            `json:"value"`
	Discount int64            `json:"discount"`
}

type setCouponActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type bulkAddStockRequest struct {
	ProductID string              `json:"product_id"`
	Items     []map[string]string `json:"items"`
}

type stockListResponse struct {
	Items     []model.StockItem `json:"items"`
	Available int               `json:"available"`
}

// Coupons

// ValidateCoupon previews a code against an order total.
func (h *Handlers) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Code == "" {
		respondError(w, r, apperr.BadRequest("Coupon code is required"))
		return
	}
	if req.Total <= 0 {
		respondError(w, r, apperr.BadRequest("Valid order total is required"))
		return
	}

	res, err := h.coupons.Validate(r.Context(), req.Code, req.Total, middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, validateCouponResponse{
		Valid:    true,
		Code:     res.Coupon.Code,
		Type:     res.Coupon.Type,
		Value:    res.Coupon.Value,
		Discount: res.Discount,
	})
}

func (h *Handlers) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if coupons == nil {
		coupons = []model.Coupon{}
	}
	respondJSON(w, http.StatusOK, coupons)
}

func (h *Handlers) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var in coupon.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	c, err := h.coupons.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handlers) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req setCouponActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.IsActive == nil {
		respondError(w, r, apperr.BadRequest("is_active is required"))
		return
	}

	c, err := h.coupons.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Stock

// ListStock lists a product's stock items with its live available count.
func (h *Handlers) ListStock(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		respondError(w, r, apperr.BadRequest("product_id is required"))
		return
	}
	status := model.StockStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.StockAvailable, model.StockReserved, model.StockSold:
	default:
		respondError(w, r, apperr.BadRequest("invalid stock status"))
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}

	items, err := h.stock.ListByProduct(r.Context(), productID, status, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	available, err := h.stock.Count(r.Context(), productID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []model.StockItem{}
	}
	respondJSON(w, http.StatusOK, stockListResponse{Items: items, Available: available})
}

func (h *Handlers) AddStock(w http.ResponseWriter, r *http.Request) {
	var req bulkAddStockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, r, apperr.BadRequest("product_id is required"))
		return
	}

	items, err := h.stock.BulkAdd(r.Context(), req.ProductID, req.Items)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Successfully added %d stock items", len(items)),
		"count":   len(items),
	})
}

func (h *Handlers) RemoveStock(w http.ResponseWriter, r *http.Request) {
	if err := h.stock.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
