package dispense

import "fmt"

// MissingBatchNumber is the placeholder batch shown for a requirement line
// that received no lot suggestion.
const MissingBatchNumber = "N/A"

// Warning flags a data-quality issue found while joining suggestions onto
// requirement lines. Warnings never abort a merge.
type Warning struct {
	TrackingID int64  `json:"tracking_id"`
	Message    string `json:"message"`
}

// Merge joins requirement lines with lot suggestions into one allocation
// document: exactly one AllocationItem per line, raw lines first, then
// packaging lines, each subset preserving its input order. A line with no
// matching suggestion gets zeroed quantities and the placeholder batch. If
// the suggestion set carries duplicates for one tracking id, the first by
// input order wins and a warning is returned.
//
// Merge is pure: no I/O, no clock, identical inputs yield identical output.
func Merge(orderID int64, rawLines, packagingLines []RequirementLine, suggestions []LotSuggestion) (Document, []Warning) {
	byTracking := make(map[int64]LotSuggestion, len(suggestions))
	var warnings []Warning
	for _, s := range suggestions {
		if _, dup := byTracking[s.TrackingID]; dup {
			warnings = append(warnings, Warning{
				TrackingID: s.TrackingID,
				Message:    fmt.Sprintf("duplicate lot suggestion for tracking id %d: keeping the first (lot %d dropped)", s.TrackingID, s.Lot.LotID),
			})
			continue
		}
		byTracking[s.TrackingID] = s
	}

	items := make([]AllocationItem, 0, len(rawLines)+len(packagingLines))
	for _, lines := range [][]RequirementLine{rawLines, packagingLines} {
		for _, line := range lines {
			items = append(items, buildItem(line, byTracking))
		}
	}

	return Document{OrderID: orderID, Items: items}, warnings
}

func buildItem(line RequirementLine, byTracking map[int64]LotSuggestion) AllocationItem {
	item := AllocationItem{
		TrackingID:       line.TrackingID,
		Product:          line.Product,
		RequiredQuantity: line.RequiredQuantity,
		Unit:             line.Unit,
		IsPackaging:      line.IsPackaging,
		Lot:              Lot{BatchNumber: MissingBatchNumber},
	}
	if s, ok := byTracking[line.TrackingID]; ok {
		item.Lot = s.Lot
		item.SuggestedQuantity = s.SuggestedQuantity
		item.ChosenQuantity = s.SuggestedQuantity
	}
	return item
}
