package erp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/farmanova/api/internal/dispense"
	"github.com/shopspring/decimal"
)

// OrderPage is one page of eligible production orders.
type OrderPage struct {
	Items         []dispense.OrderSummary `json:"items"`
	TotalPages    int                     `json:"total_pages"`
	TotalElements int64                   `json:"total_elements"`
	Page          int                     `json:"page"`
	Size          int                     `json:"size"`
}

// orderWire carries both field-name variants the ERP emits for orders.
type orderWire struct {
	OrdenProduccionID int64           `json:"ordenProduccionId"`
	OrdenID           int64           `json:"ordenId"`
	ProductoID        string          `json:"productoId"`
	CodigoProducto    string          `json:"codigoProducto"`
	NombreProducto    string          `json:"nombreProducto"`
	Producto          string          `json:"producto"`
	CantidadProducir  decimal.Decimal `json:"cantidadProducir"`
	FechaInicio       string          `json:"fechaInicio"`
	Estado            string          `json:"estado"`
}

type orderPageEnvelope struct {
	Content       []orderWire `json:"content"`
	TotalPages    int         `json:"totalPages"`
	TotalElements int64       `json:"totalElements"`
	Number        int         `json:"number"`
	Size          int         `json:"size"`
}

// FetchOrderPage fetches one catalog page of production orders, optionally
// constrained server-side to a single order id. An empty page for a filter
// that matches nothing is a valid result, not an error.
func (c *Client) FetchOrderPage(ctx context.Context, page, size int, orderIDFilter *int64) (OrderPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if orderIDFilter != nil {
		q.Set("ordenId", strconv.FormatInt(*orderIDFilter, 10))
	}

	var env orderPageEnvelope
	if err := c.getJSON(ctx, "/ordenes-produccion", q, &env); err != nil {
		return OrderPage{}, fmt.Errorf("fetch order page: %w", err)
	}

	items := make([]dispense.OrderSummary, len(env.Content))
	for i, w := range env.Content {
		items[i] = normalizeOrder(w)
	}
	return OrderPage{
		Items:         items,
		TotalPages:    env.TotalPages,
		TotalElements: env.TotalElements,
		Page:          env.Number,
		Size:          env.Size,
	}, nil
}

func normalizeOrder(w orderWire) dispense.OrderSummary {
	return dispense.OrderSummary{
		OrderID: firstInt64(w.OrdenProduccionID, w.OrdenID),
		Product: dispense.ProductRef{
			ID:   firstString(w.ProductoID, w.CodigoProducto),
			Name: firstString(w.NombreProducto, w.Producto),
		},
		QuantityToProduce: w.CantidadProducir,
		StartDate:         parseUpstreamTime(w.FechaInicio),
		Status:            normalizeStatus(w.Estado),
	}
}

func normalizeStatus(estado string) dispense.OrderStatus {
	switch estado {
	case "ABIERTA":
		return dispense.OrderOpen
	case "EN_PROCESO":
		return dispense.OrderInProgress
	default:
		return dispense.OrderUnknown
	}
}
