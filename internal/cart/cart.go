package cart

import (
	"fmt"

	"zaypos/backend/internal/domain"
	"zaypos/backend/internal/store"
)

// Cart aggregates lines before a sale is committed. It is purely
// in-memory and never touches product stock; stock is only checked so
// a cashier cannot queue more units than are on hand, and debited for
// real at commit time.
//
// Cart is not safe for concurrent use. Each register session owns one.
type Cart struct {
	lines []Line
	index map[string]int
}

// Line carries the price snapshot taken when the product first entered
// the cart, so mid-sale price edits do not shift a cart already rung up.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int64
	CostPrice   int64
	SalePrice   int64
}

type Totals struct {
	TotalCost int64
	TotalSale int64
	Profit    int64
	ItemCount int64
}

func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Add merges by product id: adding the same product again sums the
// quantity into the existing line and keeps the line's original
// position and price snapshot. The merged quantity is checked against
// the product's stock on hand.
func (c *Cart) Add(product domain.Product, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}

	if pos, ok := c.index[product.ID]; ok {
		merged := c.lines[pos].Quantity + qty
		if merged > product.Quantity {
			return &store.InsufficientStockError{ProductID: product.ID, Requested: merged, Available: product.Quantity}
		}
		c.lines[pos].Quantity = merged
		return nil
	}

	if qty > product.Quantity {
		return &store.InsufficientStockError{ProductID: product.ID, Requested: qty, Available: product.Quantity}
	}
	c.index[product.ID] = len(c.lines)
	c.lines = append(c.lines, Line{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    qty,
		CostPrice:   product.CostPrice,
		SalePrice:   product.SalePrice,
	})
	return nil
}

// SetQuantity overwrites a line's quantity. Setting zero removes the
// line, like clearing it from the register display.
func (c *Cart) SetQuantity(productID string, qty int64, available int64) error {
	pos, ok := c.index[productID]
	if !ok {
		return &store.NotFoundError{EntityType: "cart line", ID: productID}
	}
	if qty < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", qty)
	}
	if qty == 0 {
		c.Remove(productID)
		return nil
	}
	if qty > available {
		return &store.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	c.lines[pos].Quantity = qty
	return nil
}

func (c *Cart) Remove(productID string) {
	pos, ok := c.index[productID]
	if !ok {
		return
	}
	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	delete(c.index, productID)
	for i := pos; i < len(c.lines); i++ {
		c.index[c.lines[i].ProductID] = i
	}
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[string]int)
}

// Lines returns the cart contents in encounter order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Totals() Totals {
	var t Totals
	for _, line := range c.lines {
		t.TotalCost += line.CostPrice * line.Quantity
		t.TotalSale += line.SalePrice * line.Quantity
		t.ItemCount += line.Quantity
	}
	t.Profit = t.TotalSale - t.TotalCost
	return t
}

// ToSaleRequest converts the cart into the commit payload.
func (c *Cart) ToSaleRequest(receivedAmount int64) domain.SaleCommitRequest {
	items := make([]domain.SaleLineRequest, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, domain.SaleLineRequest{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return domain.SaleCommitRequest{Items: items, ReceivedAmount: receivedAmount}
}
