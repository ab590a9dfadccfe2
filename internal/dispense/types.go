package dispense

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the production order lifecycle state as reported upstream.
type OrderStatus string

const (
	OrderOpen       OrderStatus = "OPEN"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderUnknown    OrderStatus = "UNKNOWN"
)

// ProductRef identifies a product by its master-data code and display name.
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrderSummary is a read-only projection of a production order, one per
// catalog page row. Discarded on the next page fetch.
type OrderSummary struct {
	OrderID           int64           `json:"order_id"`
	Product           ProductRef      `json:"product"`
	QuantityToProduce decimal.Decimal `json:"quantity_to_produce"`
	StartDate         time.Time       `json:"start_date"`
	Status            OrderStatus     `json:"status"`
}

// RequirementLine is one raw-material or packaging input the order consumes.
// Immutable once fetched for a given order.
type RequirementLine struct {
	TrackingID       int64           `json:"tracking_id"`
	Product          ProductRef      `json:"product"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	Unit             string          `json:"unit"`
	IsPackaging      bool            `json:"is_packaging"`
}

// Lot identifies a tracked batch of material and its available quantity.
type Lot struct {
	LotID             int64           `json:"lot_id"`
	BatchNumber       string          `json:"batch_number"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

// LotSuggestion is the system's recommended lot pull for one requirement
// line. Zero or one suggestion per tracking id; absence is valid.
type LotSuggestion struct {
	TrackingID        int64           `json:"tracking_id"`
	Lot               Lot             `json:"lot"`
	SuggestedQuantity decimal.Decimal `json:"suggested_quantity"`
}

// AllocationItem is the merge result for one requirement line: the line's
// identity plus its (possibly defaulted) lot suggestion. ChosenQuantity
// starts equal to SuggestedQuantity and is editable while reviewing.
type AllocationItem struct {
	TrackingID        int64           `json:"tracking_id"`
	Product           ProductRef      `json:"product"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	Unit              string          `json:"unit"`
	IsPackaging       bool            `json:"is_packaging"`
	Lot               Lot             `json:"lot"`
	SuggestedQuantity decimal.Decimal `json:"suggested_quantity"`
	ChosenQuantity    decimal.Decimal `json:"chosen_quantity"`
}

// Document is the allocation document for one production order: exactly one
// item per requirement line, raw materials first, then packaging.
type Document struct {
	OrderID int64            `json:"order_id"`
	Items   []AllocationItem `json:"items"`
}

// NestedBOMNode is one node of the hierarchical bill-of-materials view for
// the order's product. Optional enrichment; absence is a valid terminal state.
type NestedBOMNode struct {
	Product          ProductRef      `json:"product"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	Unit             string          `json:"unit"`
	AvailableStock   decimal.Decimal `json:"available_stock"`
	Components       []NestedBOMNode `json:"components,omitempty"`
}

// CasePackDescriptor is the packing-unit metadata for a finished product.
// Optional enrichment; absence is valid.
type CasePackDescriptor struct {
	ProductID     string `json:"product_id"`
	UnitsPerCase  int    `json:"units_per_case"`
	CasesPerLayer int    `json:"cases_per_layer"`
	Description   string `json:"description"`
}
