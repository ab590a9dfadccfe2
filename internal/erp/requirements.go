package erp

import (
	"context"
	"fmt"

	"github.com/farmanova/api/internal/dispense"
	"github.com/shopspring/decimal"
)

// RequirementBreakdown is the order's input requirements, partitioned into
// recipe (raw material) and packaging subsets. The two subsets are kept
// separate because display and lot logic differ downstream.
type RequirementBreakdown struct {
	RawLines       []dispense.RequirementLine
	PackagingLines []dispense.RequirementLine
}

// insumoWire carries both field-name variants the ERP emits for requirement
// lines.
type insumoWire struct {
	SeguimientoID     int64           `json:"seguimientoId"`
	InsumoOrdenID     int64           `json:"insumoOrdenId"`
	ProductoID        string          `json:"productoId"`
	CodigoProducto    string          `json:"codigoProducto"`
	NombreProducto    string          `json:"nombreProducto"`
	Descripcion       string          `json:"descripcion"`
	CantidadRequerida decimal.Decimal `json:"cantidadRequerida"`
	Cantidad          decimal.Decimal `json:"cantidad"`
	Unidad            string          `json:"unidad"`
	UnidadMedida      string          `json:"unidadMedida"`
}

type requirementsEnvelope struct {
	InsumosReceta  []insumoWire `json:"insumosReceta"`
	InsumosEmpaque []insumoWire `json:"insumosEmpaque"`
}

// FetchRequirements fetches the flat requirement breakdown for one order.
// The server's two arrays are the raw/packaging discriminator.
func (c *Client) FetchRequirements(ctx context.Context, orderID int64) (RequirementBreakdown, error) {
	var env requirementsEnvelope
	path := fmt.Sprintf("/ordenes-produccion/%d/insumos", orderID)
	if err := c.getJSON(ctx, path, nil, &env); err != nil {
		return RequirementBreakdown{}, fmt.Errorf("fetch requirements for order %d: %w", orderID, err)
	}

	return RequirementBreakdown{
		RawLines:       normalizeInsumos(env.InsumosReceta, false),
		PackagingLines: normalizeInsumos(env.InsumosEmpaque, true),
	}, nil
}

func normalizeInsumos(wires []insumoWire, packaging bool) []dispense.RequirementLine {
	lines := make([]dispense.RequirementLine, len(wires))
	for i, w := range wires {
		qty := w.CantidadRequerida
		if qty.IsZero() {
			qty = w.Cantidad
		}
		lines[i] = dispense.RequirementLine{
			TrackingID: firstInt64(w.SeguimientoID, w.InsumoOrdenID),
			Product: dispense.ProductRef{
				ID:   firstString(w.ProductoID, w.CodigoProducto),
				Name: firstString(w.NombreProducto, w.Descripcion),
			},
			RequiredQuantity: qty,
			Unit:             firstString(w.Unidad, w.UnidadMedida),
			IsPackaging:      packaging,
		}
	}
	return lines
}
