package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/farmanova/api/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WizardHandler exposes the dispensation assistant workflow to the browser.
type WizardHandler struct {
	store *wizard.Store
	ctrl  *wizard.Controller
}

// NewWizardHandler creates a new WizardHandler.
func NewWizardHandler(store *wizard.Store, ctrl *wizard.Controller) *WizardHandler {
	return &WizardHandler{store: store, ctrl: ctrl}
}

// RegisterRoutes registers wizard session endpoints on the given Chi router.
// Expected to be mounted at /wizard/sessions
func (h *WizardHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{sid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/select", h.Select)
		r.Post("/back", h.Back)
		r.Patch("/items/{trackingId}", h.UpdateItem)
	})
}

// Create handles POST /wizard/sessions
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.store.Create()
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

// Get handles GET /wizard/sessions/{sid}
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Delete handles DELETE /wizard/sessions/{sid}
func (h *WizardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	h.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

type selectRequest struct {
	OrderID   int64  `json:"order_id"`
	ProductID string `json:"product_id"`
}

// Select handles POST /wizard/sessions/{sid}/select
// Runs the resolution workflow for the chosen order. A requirement failure
// is blocking (the session rolls back to order selection); a superseded
// selection reports 409 so the stale tab can refresh.
func (h *WizardHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id must be a positive integer"})
		return
	}

	_, err := h.ctrl.SelectOrder(r.Context(), s, req.OrderID, req.ProductID)
	switch {
	case errors.Is(err, wizard.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "selection superseded by a newer one"})
		return
	case errors.Is(err, wizard.ErrRequirements):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "requirement breakdown unavailable; returning to order selection"})
		return
	case err != nil:
		log.Printf("ERROR: select order %d: %v", req.OrderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Back handles POST /wizard/sessions/{sid}/back
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.ctrl.Back(s)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

type updateItemRequest struct {
	ChosenQuantity decimal.Decimal `json:"chosen_quantity"`
}

// UpdateItem handles PATCH /wizard/sessions/{sid}/items/{trackingId}
func (h *WizardHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	trackingID, err := strconv.ParseInt(chi.URLParam(r, "trackingId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tracking id"})
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.ctrl.SetChosenQuantity(s, trackingID, req.ChosenQuantity)
	switch {
	case errors.Is(err, wizard.ErrNegativeQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chosen_quantity must not be negative"})
		return
	case errors.Is(err, wizard.ErrNotReviewing):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session is not reviewing an allocation"})
		return
	case errors.Is(err, wizard.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "allocation item not found"})
		return
	case err != nil:
		log.Printf("ERROR: update item %d: %v", trackingID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// session resolves the {sid} URL param to a live session, writing the
// error response itself when it cannot.
func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return nil, false
	}
	s, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return s, true
}
