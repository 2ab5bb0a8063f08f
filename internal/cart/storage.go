package cart

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethanokamura/catmat/internal/domain"
)

// StorageKey is the key the storefront client persists the cart under.
const StorageKey = "catmat-cart"

const storageVersion = 0

type storedCart struct {
	State   storedState `json:"state"`
	Version int         `json:"version"`
}

type storedState struct {
	Items []Item `json:"items"`
}

// Item is the JSON shape of a cart line as stored by the client and posted to checkout.
type Item struct {
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}

// Product is the JSON shape of the product snapshot embedded in a cart line.
type Product struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Price           int64      `json:"price"`
	Images          []string   `json:"images"`
	Dimensions      Dimensions `json:"dimensions"`
	Stock           int        `json:"stock"`
	Featured        bool       `json:"featured"`
	Active          bool       `json:"active"`
	StripeProductID string     `json:"stripeProductId,omitempty"`
	StripePriceID   string     `json:"stripePriceId,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

type Dimensions struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Thickness float64 `json:"thickness"`
	Unit      string  `json:"unit"`
}

// ToDomain converts the wire item.
func (i Item) ToDomain() domain.CartItem {
	product := i.Product.ToDomain()
	id := strings.TrimSpace(i.ProductID)
	if id == "" {
		id = product.ID
	}
	return domain.CartItem{ProductID: id, Product: product, Quantity: i.Quantity}
}

// ToDomain converts the wire product.
func (p Product) ToDomain() domain.Product {
	out := domain.Product{
		ID:          strings.TrimSpace(p.ID),
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Images:      append([]string(nil), p.Images...),
		Dimensions: domain.Dimensions{
			Width:     p.Dimensions.Width,
			Height:    p.Dimensions.Height,
			Thickness: p.Dimensions.Thickness,
			Unit:      domain.DimensionUnit(p.Dimensions.Unit),
		},
		Stock:           p.Stock,
		Featured:        p.Featured,
		Active:          p.Active,
		StripeProductID: p.StripeProductID,
		StripePriceID:   p.StripePriceID,
	}
	if p.CreatedAt != nil {
		out.CreatedAt = p.CreatedAt.UTC()
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = p.UpdatedAt.UTC()
	}
	return out
}

// ItemFromDomain converts a domain cart item to its wire shape.
func ItemFromDomain(item domain.CartItem) Item {
	return Item{ProductID: item.ProductID, Product: ProductFromDomain(item.Product), Quantity: item.Quantity}
}

// ProductFromDomain converts a product to the snapshot shape clients store and the catalog serves.
func ProductFromDomain(p domain.Product) Product {
	wire := Product{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Images:      append([]string{}, p.Images...),
		Dimensions: Dimensions{
			Width:     p.Dimensions.Width,
			Height:    p.Dimensions.Height,
			Thickness: p.Dimensions.Thickness,
			Unit:      string(p.Dimensions.Unit),
		},
		Stock:           p.Stock,
		Featured:        p.Featured,
		Active:          p.Active,
		StripeProductID: p.StripeProductID,
		StripePriceID:   p.StripePriceID,
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt
		wire.CreatedAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		wire.UpdatedAt = &t
	}
	return wire
}

// MarshalJSON encodes the cart in the client storage envelope.
func (c *Cart) MarshalJSON() ([]byte, error) {
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, ItemFromDomain(item))
	}
	return json.Marshal(storedCart{
		State:   storedState{Items: items},
		Version: storageVersion,
	})
}

// Unmarshal decodes a stored cart. Entries with an empty product id or a quantity below 1 are
// dropped; duplicates are merged.
func Unmarshal(data []byte) (*Cart, error) {
	var stored storedCart
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("cart: decode stored cart: %w", err)
	}
	c := New()
	for _, wire := range stored.State.Items {
		item := wire.ToDomain()
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		item.Product.ID = item.ProductID
		c.Add(item.Product, item.Quantity)
	}
	return c, nil
}
