package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/farmanova/api/internal/erp"
	"github.com/go-chi/chi/v5"
)

// StockStore defines the upstream methods needed by the stock browse and
// kardex screens. Satisfied by *erp.Client.
type StockStore interface {
	FetchStockPage(ctx context.Context, page, size int, search string) (erp.StockPage, error)
	FetchKardexPage(ctx context.Context, productID string, page, size int) (erp.KardexPage, error)
}

// StockHandler serves the read-only stock and movement-ledger views.
// Pure read-through; the upstream page is returned as normalized.
type StockHandler struct {
	store StockStore
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(store StockStore) *StockHandler {
	return &StockHandler{store: store}
}

// RegisterStockRoutes registers GET /stock
func (h *StockHandler) RegisterStockRoutes(r chi.Router) {
	r.Get("/", h.ListStock)
}

// RegisterKardexRoutes registers GET /products/{id}/kardex
func (h *StockHandler) RegisterKardexRoutes(r chi.Router) {
	r.Get("/{id}/kardex", h.ListKardex)
}

// ListStock handles GET /stock?page=&size=&search=
func (h *StockHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)
	search := r.URL.Query().Get("search")

	result, err := h.store.FetchStockPage(r.Context(), page, size, search)
	if err != nil {
		log.Printf("ERROR: list stock: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "stock listing unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListKardex handles GET /products/{id}/kardex?page=&size=
func (h *StockHandler) ListKardex(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	page, size := pagination(r)

	result, err := h.store.FetchKardexPage(r.Context(), productID, page, size)
	if err != nil {
		log.Printf("ERROR: kardex for %s: %v", productID, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "kardex unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pagination(r *http.Request) (page, size int) {
	page = 0
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			page = v
		}
	}
	size = 20
	if s := r.URL.Query().Get("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			size = v
		}
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
