package erp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/farmanova/api/internal/dispense"
	"github.com/shopspring/decimal"
)

// StockRow is one product's current stock position.
type StockRow struct {
	Product  dispense.ProductRef `json:"product"`
	Quantity decimal.Decimal     `json:"quantity"`
	Unit     string              `json:"unit"`
	LotCount int                 `json:"lot_count"`
}

// StockPage is one page of the product stock browse.
type StockPage struct {
	Items         []StockRow `json:"items"`
	TotalPages    int        `json:"total_pages"`
	TotalElements int64      `json:"total_elements"`
	Page          int        `json:"page"`
	Size          int        `json:"size"`
}

type stockWire struct {
	ProductoID     string          `json:"productoId"`
	CodigoProducto string          `json:"codigoProducto"`
	NombreProducto string          `json:"nombreProducto"`
	Existencia     decimal.Decimal `json:"existencia"`
	Unidad         string          `json:"unidad"`
	NumeroLotes    int             `json:"numeroLotes"`
}

type stockPageEnvelope struct {
	Content       []stockWire `json:"content"`
	TotalPages    int         `json:"totalPages"`
	TotalElements int64       `json:"totalElements"`
	Number        int         `json:"number"`
	Size          int         `json:"size"`
}

// FetchStockPage fetches one page of the product stock listing, optionally
// filtered by a free-text search.
func (c *Client) FetchStockPage(ctx context.Context, page, size int, search string) (StockPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if search != "" {
		q.Set("busqueda", search)
	}

	var env stockPageEnvelope
	if err := c.getJSON(ctx, "/existencias", q, &env); err != nil {
		return StockPage{}, fmt.Errorf("fetch stock page: %w", err)
	}

	items := make([]StockRow, len(env.Content))
	for i, w := range env.Content {
		items[i] = StockRow{
			Product: dispense.ProductRef{
				ID:   firstString(w.ProductoID, w.CodigoProducto),
				Name: w.NombreProducto,
			},
			Quantity: w.Existencia,
			Unit:     w.Unidad,
			LotCount: w.NumeroLotes,
		}
	}
	return StockPage{
		Items:         items,
		TotalPages:    env.TotalPages,
		TotalElements: env.TotalElements,
		Page:          env.Number,
		Size:          env.Size,
	}, nil
}

// KardexEntry is one stock movement in a product's ledger.
type KardexEntry struct {
	Date         time.Time       `json:"date"`
	MovementType string          `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Balance      decimal.Decimal `json:"balance"`
	Reference    string          `json:"reference"`
}

// KardexPage is one page of a product's movement ledger.
type KardexPage struct {
	Items         []KardexEntry `json:"items"`
	TotalPages    int           `json:"total_pages"`
	TotalElements int64         `json:"total_elements"`
	Page          int           `json:"page"`
	Size          int           `json:"size"`
}

type kardexWire struct {
	Fecha          string          `json:"fecha"`
	TipoMovimiento string          `json:"tipoMovimiento"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	Saldo          decimal.Decimal `json:"saldo"`
	Referencia     string          `json:"referencia"`
}

type kardexPageEnvelope struct {
	Content       []kardexWire `json:"content"`
	TotalPages    int          `json:"totalPages"`
	TotalElements int64        `json:"totalElements"`
	Number        int          `json:"number"`
	Size          int          `json:"size"`
}

// FetchKardexPage fetches one page of a product's movement ledger.
func (c *Client) FetchKardexPage(ctx context.Context, productID string, page, size int) (KardexPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var env kardexPageEnvelope
	path := fmt.Sprintf("/productos/%s/kardex", productID)
	if err := c.getJSON(ctx, path, q, &env); err != nil {
		return KardexPage{}, fmt.Errorf("fetch kardex for product %s: %w", productID, err)
	}

	items := make([]KardexEntry, len(env.Content))
	for i, w := range env.Content {
		items[i] = KardexEntry{
			Date:         parseUpstreamTime(w.Fecha),
			MovementType: w.TipoMovimiento,
			Quantity:     w.Cantidad,
			Balance:      w.Saldo,
			Reference:    w.Referencia,
		}
	}
	return KardexPage{
		Items:         items,
		TotalPages:    env.TotalPages,
		TotalElements: env.TotalElements,
		Page:          env.Number,
		Size:          env.Size,
	}, nil
}
