package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farmanova/api/internal/dispense"
	"github.com/farmanova/api/internal/erp"
	"github.com/farmanova/api/internal/wizard"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Mock sources ---

type mockSources struct {
	requirements func(orderID int64) (erp.RequirementBreakdown, error)
	suggestions  func(orderID int64) ([]dispense.LotSuggestion, error)
	bom          func(productID string) (*dispense.NestedBOMNode, error)
	casePack     func(productID string) (*dispense.CasePackDescriptor, error)
}

func (m *mockSources) FetchRequirements(_ context.Context, orderID int64) (erp.RequirementBreakdown, error) {
	return m.requirements(orderID)
}

func (m *mockSources) FetchSuggestions(_ context.Context, orderID int64) ([]dispense.LotSuggestion, error) {
	return m.suggestions(orderID)
}

func (m *mockSources) FetchNestedBOM(_ context.Context, productID string) (*dispense.NestedBOMNode, error) {
	return m.bom(productID)
}

func (m *mockSources) FetchCasePack(_ context.Context, productID string) (*dispense.CasePackDescriptor, error) {
	return m.casePack(productID)
}

// order 101: raw requirements 1,2 and packaging requirement 3.
func order101Breakdown() erp.RequirementBreakdown {
	line := func(id int64, productID string, packaging bool) dispense.RequirementLine {
		return dispense.RequirementLine{
			TrackingID:       id,
			Product:          dispense.ProductRef{ID: productID, Name: "Product " + productID},
			RequiredQuantity: decimal.NewFromInt(10),
			Unit:             "KG",
			IsPackaging:      packaging,
		}
	}
	return erp.RequirementBreakdown{
		RawLines:       []dispense.RequirementLine{line(1, "MP-01", false), line(2, "MP-02", false)},
		PackagingLines: []dispense.RequirementLine{line(3, "EM-01", true)},
	}
}

func order101Suggestions() []dispense.LotSuggestion {
	return []dispense.LotSuggestion{
		{TrackingID: 1, Lot: dispense.Lot{LotID: 55, BatchNumber: "L-001", AvailableQuantity: decimal.NewFromInt(120)}, SuggestedQuantity: decimal.NewFromInt(10)},
		{TrackingID: 3, Lot: dispense.Lot{LotID: 91, BatchNumber: "L-777", AvailableQuantity: decimal.NewFromInt(500)}, SuggestedQuantity: decimal.NewFromInt(200)},
	}
}

func happySources() *mockSources {
	return &mockSources{
		requirements: func(int64) (erp.RequirementBreakdown, error) { return order101Breakdown(), nil },
		suggestions:  func(int64) ([]dispense.LotSuggestion, error) { return order101Suggestions(), nil },
		bom: func(string) (*dispense.NestedBOMNode, error) {
			return &dispense.NestedBOMNode{Product: dispense.ProductRef{ID: "PT-01"}}, nil
		},
		casePack: func(string) (*dispense.CasePackDescriptor, error) {
			return &dispense.CasePackDescriptor{ProductID: "PT-01", UnitsPerCase: 24}, nil
		},
	}
}

// --- Mock notifier ---

type mockNotifier struct {
	mu     sync.Mutex
	events []string
	ch     chan string
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{ch: make(chan string, 16)}
}

func (n *mockNotifier) BroadcastToSession(_ uuid.UUID, eventType string, _ interface{}) {
	n.mu.Lock()
	n.events = append(n.events, eventType)
	n.mu.Unlock()
	n.ch <- eventType
}

// waitFor blocks until the named event arrives or the test times out.
func (n *mockNotifier) waitFor(t *testing.T, eventType string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		n.mu.Lock()
		seen := false
		for _, e := range n.events {
			if e == eventType {
				seen = true
				break
			}
		}
		n.mu.Unlock()
		if seen {
			return
		}
		select {
		case <-n.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func newTestController(src *mockSources, n *mockNotifier) (*wizard.Controller, *wizard.Session) {
	store := wizard.NewStore()
	return wizard.NewController(src, src, src, n), store.Create()
}

// --- Tests ---

func TestSelectOrderMergesAndAdvances(t *testing.T) {
	notifier := newMockNotifier()
	ctrl, session := newTestController(happySources(), notifier)

	doc, err := ctrl.SelectOrder(context.Background(), session, 101, "PT-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(doc.Items))
	}
	for i, want := range []int64{1, 2, 3} {
		if doc.Items[i].TrackingID != want {
			t.Errorf("item %d tracking id = %d, want %d", i, doc.Items[i].TrackingID, want)
		}
	}
	if doc.Items[0].Lot.LotID != 55 || doc.Items[2].Lot.LotID != 91 {
		t.Errorf("matched items not populated: %+v", doc.Items)
	}
	if doc.Items[1].Lot.BatchNumber != dispense.MissingBatchNumber {
		t.Errorf("unmatched item not defaulted: %+v", doc.Items[1])
	}

	view := session.Snapshot()
	if view.State != wizard.StateReviewing {
		t.Errorf("state = %s, want REVIEWING_ALLOCATION", view.State)
	}
	if view.OrderID != 101 || view.Document == nil {
		t.Errorf("session does not hold the document: %+v", view)
	}

	notifier.waitFor(t, "enrichment.bom")
	notifier.waitFor(t, "enrichment.casepack")
	view = session.Snapshot()
	if view.BOM.Status != wizard.EnrichmentReady || view.BOM.Node == nil {
		t.Errorf("BOM panel = %+v, want READY", view.BOM)
	}
	if view.CasePack.Status != wizard.EnrichmentReady || view.CasePack.Descriptor == nil {
		t.Errorf("case pack panel = %+v, want READY", view.CasePack)
	}
}

// Suggestion fetch fails: the document still has one item per line, all
// zeroed, plus a non-blocking warning.
func TestSelectOrderDegradesWhenSuggestionsFail(t *testing.T) {
	src := happySources()
	src.suggestions = func(int64) ([]dispense.LotSuggestion, error) {
		return nil, errors.New("connection refused")
	}
	ctrl, session := newTestController(src, newMockNotifier())

	doc, err := ctrl.SelectOrder(context.Background(), session, 101, "")
	if err != nil {
		t.Fatalf("suggestion failure must not block, got %v", err)
	}
	if len(doc.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(doc.Items))
	}
	for _, item := range doc.Items {
		if item.Lot.LotID != 0 || !item.ChosenQuantity.IsZero() {
			t.Errorf("item %d not zeroed: %+v", item.TrackingID, item)
		}
	}

	view := session.Snapshot()
	if view.State != wizard.StateReviewing {
		t.Errorf("state = %s, want REVIEWING_ALLOCATION", view.State)
	}
	if len(view.Warnings) != 1 {
		t.Errorf("warnings = %v, want exactly one", view.Warnings)
	}
}

// Requirement fetch fails: blocking, session rolls back to SELECTING_ORDER
// and no document is produced.
func TestSelectOrderBlocksWhenRequirementsFail(t *testing.T) {
	src := happySources()
	src.requirements = func(int64) (erp.RequirementBreakdown, error) {
		return erp.RequirementBreakdown{}, errors.New("500 from upstream")
	}
	ctrl, session := newTestController(src, newMockNotifier())

	_, err := ctrl.SelectOrder(context.Background(), session, 101, "PT-01")
	if !errors.Is(err, wizard.ErrRequirements) {
		t.Fatalf("err = %v, want ErrRequirements", err)
	}

	view := session.Snapshot()
	if view.State != wizard.StateSelectingOrder {
		t.Errorf("state = %s, want SELECTING_ORDER", view.State)
	}
	if view.Document != nil {
		t.Error("no document may survive a blocking failure")
	}
}

// Late-arrival race: order 101 resolves slowly, the user switches to order
// 102 meanwhile. 101's result must be discarded when it finally lands.
func TestSelectOrderDiscardsStaleResolution(t *testing.T) {
	started101 := make(chan struct{})
	release101 := make(chan struct{})

	src := happySources()
	base := src.requirements
	src.requirements = func(orderID int64) (erp.RequirementBreakdown, error) {
		if orderID == 101 {
			close(started101)
			<-release101
		}
		return base(orderID)
	}
	ctrl, session := newTestController(src, newMockNotifier())

	slowErr := make(chan error, 1)
	go func() {
		_, err := ctrl.SelectOrder(context.Background(), session, 101, "")
		slowErr <- err
	}()

	<-started101
	if _, err := ctrl.SelectOrder(context.Background(), session, 102, ""); err != nil {
		t.Fatalf("fast selection failed: %v", err)
	}

	close(release101)
	if err := <-slowErr; !errors.Is(err, wizard.ErrSuperseded) {
		t.Fatalf("stale selection err = %v, want ErrSuperseded", err)
	}

	view := session.Snapshot()
	if view.OrderID != 102 || view.Document == nil || view.Document.OrderID != 102 {
		t.Errorf("final document must belong to order 102: %+v", view)
	}
}

// Case-pack fetch fails while the BOM fetch succeeds: the two panels settle
// independently and the document is untouched.
func TestEnrichmentFailuresAreIndependent(t *testing.T) {
	src := happySources()
	src.casePack = func(string) (*dispense.CasePackDescriptor, error) {
		return nil, errors.New("timeout")
	}
	notifier := newMockNotifier()
	ctrl, session := newTestController(src, notifier)

	doc, err := ctrl.SelectOrder(context.Background(), session, 101, "PT-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifier.waitFor(t, "enrichment.bom")
	notifier.waitFor(t, "enrichment.casepack")

	view := session.Snapshot()
	if view.BOM.Status != wizard.EnrichmentReady {
		t.Errorf("BOM panel = %+v, want READY", view.BOM)
	}
	if view.CasePack.Status != wizard.EnrichmentUnavailable {
		t.Errorf("case pack panel = %+v, want UNAVAILABLE", view.CasePack)
	}
	if view.State != wizard.StateReviewing || len(view.Document.Items) != len(doc.Items) {
		t.Errorf("document affected by enrichment failure: %+v", view)
	}
}

func TestEnrichmentSkippedWithoutProductID(t *testing.T) {
	ctrl, session := newTestController(happySources(), newMockNotifier())

	if _, err := ctrl.SelectOrder(context.Background(), session, 101, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view := session.Snapshot()
	if view.BOM.Status != wizard.EnrichmentSkipped || view.CasePack.Status != wizard.EnrichmentSkipped {
		t.Errorf("panels = %+v / %+v, want SKIPPED", view.BOM, view.CasePack)
	}
}

func TestBackDiscardsDocument(t *testing.T) {
	ctrl, session := newTestController(happySources(), newMockNotifier())

	if _, err := ctrl.SelectOrder(context.Background(), session, 101, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctrl.Back(session)

	view := session.Snapshot()
	if view.State != wizard.StateSelectingOrder {
		t.Errorf("state = %s, want SELECTING_ORDER", view.State)
	}
	if view.Document != nil || view.OrderID != 0 || len(view.Warnings) != 0 {
		t.Errorf("back must discard everything: %+v", view)
	}
}

func TestSetChosenQuantity(t *testing.T) {
	ctrl, session := newTestController(happySources(), newMockNotifier())

	if _, err := ctrl.SetChosenQuantity(session, 1, decimal.NewFromInt(5)); !errors.Is(err, wizard.ErrNotReviewing) {
		t.Errorf("err = %v, want ErrNotReviewing before a selection", err)
	}

	if _, err := ctrl.SelectOrder(context.Background(), session, 101, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item, err := ctrl.SetChosenQuantity(session, 1, decimal.NewFromInt(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.ChosenQuantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("chosen = %s, want 7", item.ChosenQuantity)
	}
	view := session.Snapshot()
	if !view.Document.Items[0].ChosenQuantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("session document not updated: %+v", view.Document.Items[0])
	}

	if _, err := ctrl.SetChosenQuantity(session, 1, decimal.NewFromInt(-1)); !errors.Is(err, wizard.ErrNegativeQuantity) {
		t.Errorf("err = %v, want ErrNegativeQuantity", err)
	}
	if _, err := ctrl.SetChosenQuantity(session, 999, decimal.NewFromInt(1)); !errors.Is(err, wizard.ErrItemNotFound) {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestSnapshotCopiesDocument(t *testing.T) {
	ctrl, session := newTestController(happySources(), newMockNotifier())

	if _, err := ctrl.SelectOrder(context.Background(), session, 101, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view := session.Snapshot()
	view.Document.Items[0].ChosenQuantity = decimal.NewFromInt(9999)

	if session.Snapshot().Document.Items[0].ChosenQuantity.Equal(decimal.NewFromInt(9999)) {
		t.Error("mutating a snapshot must not touch the session's document")
	}
}

func TestStoreLifecycle(t *testing.T) {
	store := wizard.NewStore()

	s := store.Create()
	if s.ID == uuid.Nil {
		t.Fatal("session id not assigned")
	}
	if got, ok := store.Get(s.ID); !ok || got != s {
		t.Fatal("created session not retrievable")
	}
	if view := s.Snapshot(); view.State != wizard.StateSelectingOrder {
		t.Errorf("new session state = %s, want SELECTING_ORDER", view.State)
	}

	store.Delete(s.ID)
	if _, ok := store.Get(s.ID); ok {
		t.Fatal("deleted session still retrievable")
	}
	store.Delete(uuid.New())
}
