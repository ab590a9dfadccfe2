package erp

import (
	"context"
	"fmt"

	"github.com/farmanova/api/internal/dispense"
	"github.com/shopspring/decimal"
)

// bomNodeWire is one node of the recursive bill-of-materials tree.
type bomNodeWire struct {
	ProductoID      string          `json:"productoId"`
	CodigoProducto  string          `json:"codigoProducto"`
	NombreProducto  string          `json:"nombreProducto"`
	Cantidad        decimal.Decimal `json:"cantidad"`
	Unidad          string          `json:"unidad"`
	StockDisponible decimal.Decimal `json:"stockDisponible"`
	Componentes     []bomNodeWire   `json:"componentes"`
}

// FetchNestedBOM fetches the hierarchical bill-of-materials view for a
// product. Best-effort from the workflow's point of view; the error return
// is still plain here, the wizard layer does the soft-failure tagging.
func (c *Client) FetchNestedBOM(ctx context.Context, productID string) (*dispense.NestedBOMNode, error) {
	var root bomNodeWire
	path := fmt.Sprintf("/productos/%s/arbol-insumos", productID)
	if err := c.getJSON(ctx, path, nil, &root); err != nil {
		return nil, fmt.Errorf("fetch nested BOM for product %s: %w", productID, err)
	}
	node := normalizeBOMNode(root)
	return &node, nil
}

func normalizeBOMNode(w bomNodeWire) dispense.NestedBOMNode {
	node := dispense.NestedBOMNode{
		Product: dispense.ProductRef{
			ID:   firstString(w.ProductoID, w.CodigoProducto),
			Name: w.NombreProducto,
		},
		RequiredQuantity: w.Cantidad,
		Unit:             w.Unidad,
		AvailableStock:   w.StockDisponible,
	}
	for _, child := range w.Componentes {
		node.Components = append(node.Components, normalizeBOMNode(child))
	}
	return node
}

type casePackWire struct {
	ProductoID       string `json:"productoId"`
	UnidadesPorCaja  int    `json:"unidadesPorCaja"`
	CajasPorCama     int    `json:"cajasPorCama"`
	Descripcion      string `json:"descripcion"`
}

// FetchCasePack fetches the packing-unit descriptor for a finished product.
func (c *Client) FetchCasePack(ctx context.Context, productID string) (*dispense.CasePackDescriptor, error) {
	var w casePackWire
	path := fmt.Sprintf("/productos/%s/empaque", productID)
	if err := c.getJSON(ctx, path, nil, &w); err != nil {
		return nil, fmt.Errorf("fetch case pack for product %s: %w", productID, err)
	}
	return &dispense.CasePackDescriptor{
		ProductID:     firstString(w.ProductoID, productID),
		UnitsPerCase:  w.UnidadesPorCaja,
		CasesPerLayer: w.CajasPorCama,
		Description:   w.Descripcion,
	}, nil
}
