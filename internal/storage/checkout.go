package storage

import (
	"math"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
)

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// reserveLines checks every line against the working stock in products and returns the priced
// items. Line totals are left unrounded; only the order total is rounded to cents. Stock is decremented in place, so a product repeated across lines sees the earlier
// reservation. Callers must discard products when an error is returned.
func reserveLines(lines []OrderLine, products map[string]*Product) ([]OrderItem, error) {
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return nil, apperr.ProductNotFound(line.ProductID)
		}
		if p.Stock < line.Quantity {
			return nil, &apperr.StockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   line.Quantity,
			}
		}
		p.Stock -= line.Quantity

		items = append(items, OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Total:     p.Price * float64(line.Quantity),
		})
	}
	return items, nil
}
