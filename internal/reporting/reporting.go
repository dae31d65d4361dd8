package reporting

import (
	"cmp"
	"slices"
	"time"

	"zaypos/backend/internal/domain"
)

// ProductPerformance aggregates one product's movement across a set of
// sales. Figures come from the sale line snapshots, so products that
// were renamed or deleted since still report under the name they sold as.
type ProductPerformance struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int64  `json:"quantity_sold"`
	Revenue      int64  `json:"revenue"`
	Profit       int64  `json:"profit"`
}

const defaultTopLimit = 5

// TopProducts ranks products by units sold since the given cutoff,
// breaking ties by revenue and then name so the order is stable.
func TopProducts(sales []domain.Sale, since time.Time, limit int) []ProductPerformance {
	if limit < 1 {
		limit = defaultTopLimit
	}

	byProduct := make(map[string]*ProductPerformance)
	for _, sale := range sales {
		if sale.CreatedAt.Before(since) {
			continue
		}
		for _, item := range sale.Items {
			perf, ok := byProduct[item.ProductID]
			if !ok {
				perf = &ProductPerformance{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = perf
			}
			perf.QuantitySold += item.Quantity
			perf.Revenue += item.TotalSale
			perf.Profit += item.Profit
		}
	}

	ranked := make([]ProductPerformance, 0, len(byProduct))
	for _, perf := range byProduct {
		ranked = append(ranked, *perf)
	}
	slices.SortFunc(ranked, func(a, b ProductPerformance) int {
		if c := cmp.Compare(b.QuantitySold, a.QuantitySold); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductName, b.ProductName)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
