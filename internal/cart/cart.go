// Package cart implements the shopping cart aggregate: line items keyed by product id in
// insertion order, with merge-on-add semantics and the client storage encoding.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethanokamura/catmat/internal/domain"
)

// Cart is not safe for concurrent use.
type Cart struct {
	items []domain.CartItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// ErrConflictingPrice is returned by FromItems when one product id carries two prices.
var ErrConflictingPrice = errors.New("cart: conflicting prices for product")

// FromItems builds a cart from untrusted line items, merging duplicates by product id.
// Items without a product id are skipped. Duplicates must agree on price.
func FromItems(items []domain.CartItem) (*Cart, error) {
	c := New()
	for _, item := range items {
		id := itemProductID(item)
		if id == "" {
			continue
		}
		if idx := c.index(id); idx >= 0 && c.items[idx].Product.Price != item.Product.Price {
			return nil, fmt.Errorf("%w %s: %d and %d", ErrConflictingPrice, id, c.items[idx].Product.Price, item.Product.Price)
		}
		item.Product.ID = id
		c.Add(item.Product, item.Quantity)
	}
	return c, nil
}

// Add inserts the product or increases the quantity of an existing entry.
// Quantities below 1 are treated as 1.
func (c *Cart) Add(product domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if idx := c.index(product.ID); idx >= 0 {
		c.items[idx].Quantity += quantity
		return
	}
	c.items = append(c.items, domain.CartItem{
		ProductID: product.ID,
		Product:   product,
		Quantity:  quantity,
	})
}

// Remove drops the entry for productID. Unknown ids are a no-op.
func (c *Cart) Remove(productID string) {
	idx := c.index(productID)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
}

// UpdateQuantity sets the quantity of an existing entry; a quantity of zero or less removes it.
func (c *Cart) UpdateQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.Remove(productID)
		return
	}
	if idx := c.index(productID); idx >= 0 {
		c.items[idx].Quantity = quantity
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Total is the sum of price * quantity in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

// ItemCount is the sum of quantities.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// Items returns a copy of the entries in insertion order.
func (c *Cart) Items() []domain.CartItem {
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len is the number of distinct products.
func (c *Cart) Len() int { return len(c.items) }

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) index(productID string) int {
	for i, item := range c.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func itemProductID(item domain.CartItem) string {
	if id := strings.TrimSpace(item.ProductID); id != "" {
		return id
	}
	return strings.TrimSpace(item.Product.ID)
}
