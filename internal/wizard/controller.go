// Package wizard owns the dispensation assistant workflow: session state,
// the concurrent requirement/suggestion resolution, the allocation merge,
// and the best-effort enrichment fetches.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/farmanova/api/internal/dispense"
	"github.com/farmanova/api/internal/erp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the wizard controller.
var (
	ErrSuperseded       = errors.New("selection superseded by a newer one")
	ErrRequirements     = errors.New("requirement breakdown unavailable")
	ErrNotReviewing     = errors.New("session is not reviewing an allocation")
	ErrItemNotFound     = errors.New("no allocation item with that tracking id")
	ErrNegativeQuantity = errors.New("chosen quantity must not be negative")
)

// State is the wizard session state.
type State string

const (
	StateSelectingOrder State = "SELECTING_ORDER"
	StateResolving      State = "RESOLVING"
	StateReviewing      State = "REVIEWING_ALLOCATION"
)

// EnrichmentStatus is the tagged state of one optional enrichment panel.
// Failures degrade to Unavailable; they never block the allocation document.
type EnrichmentStatus string

const (
	EnrichmentIdle        EnrichmentStatus = "IDLE"
	EnrichmentSkipped     EnrichmentStatus = "SKIPPED"
	EnrichmentLoading     EnrichmentStatus = "LOADING"
	EnrichmentReady       EnrichmentStatus = "READY"
	EnrichmentUnavailable EnrichmentStatus = "UNAVAILABLE"
)

// BOMPanel is the nested bill-of-materials enrichment state.
type BOMPanel struct {
	Status EnrichmentStatus       `json:"status"`
	Node   *dispense.NestedBOMNode `json:"node,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

// CasePackPanel is the case-pack enrichment state.
type CasePackPanel struct {
	Status     EnrichmentStatus             `json:"status"`
	Descriptor *dispense.CasePackDescriptor `json:"descriptor,omitempty"`
	Reason     string                       `json:"reason,omitempty"`
}

// RequirementSource fetches an order's requirement breakdown.
// Satisfied by *erp.Client.
type RequirementSource interface {
	FetchRequirements(ctx context.Context, orderID int64) (erp.RequirementBreakdown, error)
}

// SuggestionSource fetches an order's recommended lot allocations.
// Satisfied by *erp.Client.
type SuggestionSource interface {
	FetchSuggestions(ctx context.Context, orderID int64) ([]dispense.LotSuggestion, error)
}

// EnrichmentSource fetches the two optional product enrichments.
// Satisfied by *erp.Client.
type EnrichmentSource interface {
	FetchNestedBOM(ctx context.Context, productID string) (*dispense.NestedBOMNode, error)
	FetchCasePack(ctx context.Context, productID string) (*dispense.CasePackDescriptor, error)
}

// Notifier pushes session-scoped events to subscribed browser clients.
// Satisfied by *ws.Hub.
type Notifier interface {
	BroadcastToSession(sessionID uuid.UUID, eventType string, payload interface{})
}

// Session is one user's wizard session. The allocation document is owned
// exclusively by the session; other components only produce merge inputs.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	state    State
	orderID  int64
	// generation increments on every selection and on back-navigation;
	// async completions carrying an older generation are discarded.
	generation uint64
	doc        *dispense.Document
	warnings   []string
	bom        BOMPanel
	casePack   CasePackPanel
}

func newSession() *Session {
	return &Session{
		ID:       uuid.New(),
		state:    StateSelectingOrder,
		bom:      BOMPanel{Status: EnrichmentIdle},
		casePack: CasePackPanel{Status: EnrichmentIdle},
	}
}

// View is a consistent snapshot of a session for rendering.
type View struct {
	SessionID uuid.UUID          `json:"session_id"`
	State     State              `json:"state"`
	OrderID   int64              `json:"order_id,omitempty"`
	Document  *dispense.Document `json:"document,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	BOM       BOMPanel           `json:"bom"`
	CasePack  CasePackPanel      `json:"case_pack"`
}

// Snapshot returns a copy of the session's current state. The document is
// deep-copied so callers can never mutate the session's own copy.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID: s.ID,
		State:     s.state,
		OrderID:   s.orderID,
		Warnings:  append([]string(nil), s.warnings...),
		BOM:       s.bom,
		CasePack:  s.casePack,
	}
	if s.doc != nil {
		doc := dispense.Document{
			OrderID: s.doc.OrderID,
			Items:   append([]dispense.AllocationItem(nil), s.doc.Items...),
		}
		v.Document = &doc
	}
	return v
}

// Controller runs the wizard workflow against the upstream sources.
type Controller struct {
	requirements RequirementSource
	suggestions  SuggestionSource
	enrichment   EnrichmentSource
	notifier     Notifier
}

// NewController creates a Controller.
func NewController(req RequirementSource, sugg SuggestionSource, enr EnrichmentSource, n Notifier) *Controller {
	return &Controller{requirements: req, suggestions: sugg, enrichment: enr, notifier: n}
}

// SelectOrder runs the resolution workflow for one order: requirements and
// suggestions are fetched concurrently, merged into the allocation document,
// and the session advances to REVIEWING_ALLOCATION. A requirement failure
// rolls the session back to SELECTING_ORDER. A suggestion failure degrades
// to an empty suggestion set plus a non-blocking warning. If the user
// selects another order while this one is resolving, the slower resolution
// is discarded and reported as ErrSuperseded.
//
// productID is the order's finished product; when empty, enrichment is
// skipped. Enrichment continues in the background after SelectOrder returns
// and is announced over the notifier as each fetch settles.
func (c *Controller) SelectOrder(ctx context.Context, s *Session, orderID int64, productID string) (*dispense.Document, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = StateResolving
	s.orderID = orderID
	s.doc = nil
	s.warnings = nil
	s.bom = BOMPanel{Status: EnrichmentIdle}
	s.casePack = CasePackPanel{Status: EnrichmentIdle}
	s.mu.Unlock()

	var (
		breakdown erp.RequirementBreakdown
		reqErr    error
		sugg      []dispense.LotSuggestion
		suggErr   error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		breakdown, reqErr = c.requirements.FetchRequirements(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		sugg, suggErr = c.suggestions.FetchSuggestions(ctx, orderID)
	}()
	wg.Wait()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil, ErrSuperseded
	}

	if reqErr != nil {
		// Blocking: without requirements there is no meaningful allocation.
		s.state = StateSelectingOrder
		s.orderID = 0
		s.mu.Unlock()
		log.Printf("ERROR: session %s: requirements for order %d: %v", s.ID, orderID, reqErr)
		return nil, fmt.Errorf("%w: %v", ErrRequirements, reqErr)
	}

	if suggErr != nil {
		// Degrading: every line still gets an item, just zeroed.
		log.Printf("WARN: session %s: lot suggestions for order %d: %v", s.ID, orderID, suggErr)
		s.warnings = append(s.warnings, "lot suggestions unavailable; allocations start empty")
		sugg = nil
	}

	doc, mergeWarnings := dispense.Merge(orderID, breakdown.RawLines, breakdown.PackagingLines, sugg)
	for _, w := range mergeWarnings {
		log.Printf("WARN: session %s: order %d: %s", s.ID, orderID, w.Message)
		s.warnings = append(s.warnings, w.Message)
	}

	s.doc = &doc
	s.state = StateReviewing

	if productID == "" {
		s.bom = BOMPanel{Status: EnrichmentSkipped}
		s.casePack = CasePackPanel{Status: EnrichmentSkipped}
	} else {
		s.bom = BOMPanel{Status: EnrichmentLoading}
		s.casePack = CasePackPanel{Status: EnrichmentLoading}
	}
	s.mu.Unlock()

	c.notify(s.ID, "document.ready", s.Snapshot())

	if productID != "" {
		// Enrichment outlives the selecting request on purpose: the review
		// screen renders loading panels and fills them in over the socket.
		bg := context.WithoutCancel(ctx)
		go c.resolveBOM(bg, s, gen, productID)
		go c.resolveCasePack(bg, s, gen, productID)
	}

	return &doc, nil
}

// resolveBOM settles the nested-BOM panel. Failure is soft: the panel goes
// Unavailable and nothing else changes.
func (c *Controller) resolveBOM(ctx context.Context, s *Session, gen uint64, productID string) {
	node, err := c.enrichment.FetchNestedBOM(ctx, productID)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		log.Printf("WARN: session %s: nested BOM for product %s: %v", s.ID, productID, err)
		s.bom = BOMPanel{Status: EnrichmentUnavailable, Reason: "bill of materials unavailable"}
	} else {
		s.bom = BOMPanel{Status: EnrichmentReady, Node: node}
	}
	panel := s.bom
	s.mu.Unlock()

	c.notify(s.ID, "enrichment.bom", panel)
}

// resolveCasePack settles the case-pack panel, independently of the BOM.
func (c *Controller) resolveCasePack(ctx context.Context, s *Session, gen uint64, productID string) {
	desc, err := c.enrichment.FetchCasePack(ctx, productID)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		log.Printf("WARN: session %s: case pack for product %s: %v", s.ID, productID, err)
		s.casePack = CasePackPanel{Status: EnrichmentUnavailable, Reason: "case pack unavailable"}
	} else {
		s.casePack = CasePackPanel{Status: EnrichmentReady, Descriptor: desc}
	}
	panel := s.casePack
	s.mu.Unlock()

	c.notify(s.ID, "enrichment.casepack", panel)
}

// Back returns the session to SELECTING_ORDER and discards the allocation
// document entirely. Bumping the generation makes any still-in-flight
// resolution or enrichment result stale.
func (c *Controller) Back(s *Session) {
	s.mu.Lock()
	s.generation++
	s.state = StateSelectingOrder
	s.orderID = 0
	s.doc = nil
	s.warnings = nil
	s.bom = BOMPanel{Status: EnrichmentIdle}
	s.casePack = CasePackPanel{Status: EnrichmentIdle}
	s.mu.Unlock()
}

// SetChosenQuantity updates one allocation item's chosen quantity. Valid
// only while reviewing; the document never changes hands.
func (c *Controller) SetChosenQuantity(s *Session, trackingID int64, qty decimal.Decimal) (dispense.AllocationItem, error) {
	if qty.IsNegative() {
		return dispense.AllocationItem{}, ErrNegativeQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReviewing || s.doc == nil {
		return dispense.AllocationItem{}, ErrNotReviewing
	}
	for i := range s.doc.Items {
		if s.doc.Items[i].TrackingID == trackingID {
			s.doc.Items[i].ChosenQuantity = qty
			return s.doc.Items[i], nil
		}
	}
	return dispense.AllocationItem{}, ErrItemNotFound
}

func (c *Controller) notify(sessionID uuid.UUID, eventType string, payload interface{}) {
	if c.notifier == nil {
		return
	}
	c.notifier.BroadcastToSession(sessionID, eventType, payload)
}
