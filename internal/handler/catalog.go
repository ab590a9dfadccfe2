package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/farmanova/api/internal/erp"
	"github.com/go-chi/chi/v5"
)

// CatalogStore defines the upstream methods needed by the order catalog.
// Satisfied by *erp.Client; narrow interface for testability.
type CatalogStore interface {
	FetchOrderPage(ctx context.Context, page, size int, orderIDFilter *int64) (erp.OrderPage, error)
}

// CatalogHandler serves the production order catalog the wizard's first
// step browses.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterRoutes registers catalog endpoints on the given Chi router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// List handles GET /orders?page=&size=&order_id=
// An empty result for an order_id filter is a valid page with zero rows,
// never an error. A malformed or non-positive order_id is rejected before
// any upstream call is made.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)

	var orderIDFilter *int64
	if s := r.URL.Query().Get("order_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id must be a positive integer"})
			return
		}
		orderIDFilter = &v
	}

	result, err := h.store.FetchOrderPage(r.Context(), page, size, orderIDFilter)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "order catalog unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}
