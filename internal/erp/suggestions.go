package erp

import (
	"context"
	"fmt"
	"log"

	"github.com/farmanova/api/internal/dispense"
	"github.com/shopspring/decimal"
)

// dispensacionWire is one suggested pull: which requirement line, which lot,
// how much. Lot details live in the sibling lotesRecomendados array.
type dispensacionWire struct {
	SeguimientoID     int64           `json:"seguimientoId"`
	InsumoOrdenID     int64           `json:"insumoOrdenId"`
	LoteID            int64           `json:"loteId"`
	CantidadSugerida  decimal.Decimal `json:"cantidadSugerida"`
	Cantidad          decimal.Decimal `json:"cantidad"`
}

// loteWire is the detail record for one recommended lot.
type loteWire struct {
	LoteID              int64           `json:"loteId"`
	ID                  int64           `json:"id"`
	NumeroLote          string          `json:"numeroLote"`
	Lote                string          `json:"lote"`
	CantidadDisponible  decimal.Decimal `json:"cantidadDisponible"`
	Disponible          decimal.Decimal `json:"disponible"`
}

type suggestionsEnvelope struct {
	Dispensaciones    []dispensacionWire `json:"dispensaciones"`
	LotesRecomendados []loteWire         `json:"lotesRecomendados"`
}

// FetchSuggestions fetches the system-recommended lot allocations for one
// order. The server sends suggestions and lot details as two parallel
// arrays; they are joined here by lot id so callers only ever see complete
// LotSuggestion records, in the server's suggestion order.
func (c *Client) FetchSuggestions(ctx context.Context, orderID int64) ([]dispense.LotSuggestion, error) {
	var env suggestionsEnvelope
	path := fmt.Sprintf("/ordenes-produccion/%d/dispensacion-sugerida", orderID)
	if err := c.getJSON(ctx, path, nil, &env); err != nil {
		return nil, fmt.Errorf("fetch lot suggestions for order %d: %w", orderID, err)
	}

	lots := make(map[int64]dispense.Lot, len(env.LotesRecomendados))
	for _, w := range env.LotesRecomendados {
		id := firstInt64(w.LoteID, w.ID)
		avail := w.CantidadDisponible
		if avail.IsZero() {
			avail = w.Disponible
		}
		lots[id] = dispense.Lot{
			LotID:             id,
			BatchNumber:       firstString(w.NumeroLote, w.Lote),
			AvailableQuantity: avail,
		}
	}

	suggestions := make([]dispense.LotSuggestion, 0, len(env.Dispensaciones))
	for _, w := range env.Dispensaciones {
		qty := w.CantidadSugerida
		if qty.IsZero() {
			qty = w.Cantidad
		}
		lot, ok := lots[w.LoteID]
		if !ok {
			// Suggestion references a lot the server did not describe.
			// Keep the id so the row is still traceable.
			log.Printf("WARN: order %d: suggestion references unknown lot %d", orderID, w.LoteID)
			lot = dispense.Lot{LotID: w.LoteID}
		}
		suggestions = append(suggestions, dispense.LotSuggestion{
			TrackingID:        firstInt64(w.SeguimientoID, w.InsumoOrdenID),
			Lot:               lot,
			SuggestedQuantity: qty,
		})
	}
	return suggestions, nil
}
