package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/weddify/binks/internal/domain/product"
	"github.com/weddify/binks/internal/model"
)

// ListProducts returns the active catalogue. Admins also see inactive products.
// ?search= filters by title.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), !isAdmin(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); search != "" {
		filtered := make([]model.Product, 0, len(products))
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Title), search) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), chi.URLParam(r, "id"), isAdmin(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
