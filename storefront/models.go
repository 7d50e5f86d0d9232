package storefront

import "slices"

// Backend pricing constants, mirrored so optimistic totals move with
// quantities before the server recomputes them.
const (
	TaxRate               = 0.18
	ShippingCost          = 5.99
	FreeShippingThreshold = 100.0
)

// PlaceholderName is shown for products whose details are not loaded yet.
const PlaceholderName = "Loading..."

// Product is a catalog product.
type Product struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Rating        float64  `json:"rating"`
	Image         string   `json:"image"`
	Category      string   `json:"category"`
	Badge         *string  `json:"badge,omitempty"`
	BadgeColor    *string  `json:"badge_color,omitempty"`
	Featured      bool     `json:"featured"`
	Stock         int      `json:"stock"`
}

// Loaded reports whether the product carries server data.
func (p Product) Loaded() bool { return p.ID != 0 && p.Name != PlaceholderName }

func placeholderProduct(productID uint) Product {
	return Product{
		ID:          productID,
		Name:        PlaceholderName,
		Description: PlaceholderName,
	}
}

// CartItem is one line of the cart. Items are unique per ProductID.
type CartItem struct {
	ID        uint    `json:"id"`
	CartID    uint    `json:"cart_id"`
	ProductID uint    `json:"product_id"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`

	// Loading is set while a quantity change is in flight.
	Loading bool `json:"-"`

	// Placeholder marks an optimistic item not yet confirmed by the server.
	Placeholder bool `json:"-"`
}

// Cart is the user's cart with its computed totals.
type Cart struct {
	ID       uint       `json:"id"`
	UserID   uint       `json:"user_id"`
	Items    []CartItem `json:"items"`
	Subtotal float64    `json:"subtotal"`
	Shipping float64    `json:"shipping"`
	Tax      float64    `json:"tax"`
	TaxRate  float64    `json:"tax_rate"`
	Total    float64    `json:"total"`

	// Loading is set while an update or removal is in flight.
	Loading bool `json:"-"`
}

// Item returns the item with the given id.
func (c Cart) Item(itemID uint) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}

// ItemForProduct returns the item holding productID.
func (c Cart) ItemForProduct(productID uint) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// Count returns the total quantity across items.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// clone returns a copy whose Items slice can be modified.
func (c Cart) clone() Cart {
	c.Items = slices.Clone(c.Items)
	return c
}

// Recalculate recomputes the totals of c from its items the way the
// backend does. Items whose product is not loaded contribute nothing.
func Recalculate(c Cart) Cart {
	var subtotal float64
	for _, it := range c.Items {
		if it.Product.Loaded() {
			subtotal += it.Product.Price * float64(it.Quantity)
		}
	}

	var shipping float64
	if subtotal > 0 && subtotal <= FreeShippingThreshold {
		shipping = ShippingCost
	}
	tax := subtotal * TaxRate

	c.Subtotal = subtotal
	c.Shipping = shipping
	c.Tax = tax
	c.TaxRate = TaxRate
	c.Total = subtotal + shipping + tax
	return c
}

// WishlistEntry is one wishlisted product.
type WishlistEntry struct {
	ID        uint    `json:"id"`
	UserID    uint    `json:"user_id"`
	ProductID uint    `json:"product_id"`
	Product   Product `json:"product"`

	// Placeholder marks an optimistic entry not yet confirmed by the server.
	Placeholder bool `json:"-"`
}

// Wishlist is the user's wishlist.
type Wishlist struct {
	Entries []WishlistEntry
}

// Contains reports whether productID is wishlisted.
func (w Wishlist) Contains(productID uint) bool {
	for _, e := range w.Entries {
		if e.ProductID == productID {
			return true
		}
	}
	return false
}

func (w Wishlist) clone() Wishlist {
	w.Entries = slices.Clone(w.Entries)
	return w
}

// Membership is the result of a wishlist check for one product.
type Membership struct {
	InWishlist bool `json:"in_wishlist"`
}
