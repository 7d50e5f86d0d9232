package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonwraymond/storesync/api"
)

// Backend paths, relative to the API base URL.
const (
	PathCart      = "/cart"
	PathCartItems = "/cart/items"
	PathWishlist  = "/wishlist"
)

// Remote performs the storefront's backend operations over an api.Issuer,
// normally the authenticated client.
//
// Contract:
//   - Concurrency: safe for concurrent use if the issuer is.
//   - Errors: issuer errors are returned unchanged; decode failures are
//     wrapped with the operation name.
type Remote struct {
	issuer api.Issuer
}

// NewRemote creates a Remote.
func NewRemote(issuer api.Issuer) *Remote {
	return &Remote{issuer: issuer}
}

type addToCartRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type addToWishlistRequest struct {
	ProductID uint `json:"product_id"`
}

type cartResponse struct {
	Data Cart `json:"data"`
}

type cartItemResponse struct {
	Message string    `json:"message"`
	Data    *CartItem `json:"data"`
}

type wishlistResponse struct {
	Data []WishlistEntry `json:"data"`
}

type wishlistEntryResponse struct {
	Message string         `json:"message"`
	Data    *WishlistEntry `json:"data"`
}

// GetCart fetches the cart with its totals.
func (r *Remote) GetCart(ctx context.Context) (Cart, error) {
	var out cartResponse
	if err := r.do(ctx, "get cart", api.NewRequest(http.MethodGet, PathCart, nil), &out); err != nil {
		return Cart{}, err
	}
	return out.Data, nil
}

// AddCartItem adds quantity of productID. The server merges into an
// existing item and returns the resulting item.
func (r *Remote) AddCartItem(ctx context.Context, productID uint, quantity int) (CartItem, error) {
	req := api.NewRequest(http.MethodPost, PathCartItems, addToCartRequest{ProductID: productID, Quantity: quantity})
	var out cartItemResponse
	if err := r.do(ctx, "add cart item", req, &out); err != nil {
		return CartItem{}, err
	}
	if out.Data == nil {
		return CartItem{}, nil
	}
	return *out.Data, nil
}

// UpdateCartItem sets the quantity of an item. The backend may reply with
// a message only, in which case the returned item is zero.
func (r *Remote) UpdateCartItem(ctx context.Context, itemID uint, quantity int) (CartItem, error) {
	req := api.NewRequest(http.MethodPut, fmt.Sprintf("%s/%d", PathCartItems, itemID), updateCartItemRequest{Quantity: quantity})
	var out cartItemResponse
	if err := r.do(ctx, "update cart item", req, &out); err != nil {
		return CartItem{}, err
	}
	if out.Data == nil {
		return CartItem{}, nil
	}
	return *out.Data, nil
}

// RemoveCartItem deletes an item from the cart.
func (r *Remote) RemoveCartItem(ctx context.Context, itemID uint) error {
	req := api.NewRequest(http.MethodDelete, fmt.Sprintf("%s/%d", PathCartItems, itemID), nil)
	return r.do(ctx, "remove cart item", req, nil)
}

// GetWishlist fetches the wishlist.
func (r *Remote) GetWishlist(ctx context.Context) (Wishlist, error) {
	var out wishlistResponse
	if err := r.do(ctx, "get wishlist", api.NewRequest(http.MethodGet, PathWishlist, nil), &out); err != nil {
		return Wishlist{}, err
	}
	return Wishlist{Entries: out.Data}, nil
}

// AddWishlistItem wishlists productID. The backend may reply with a
// message only, in which case the returned entry is zero.
func (r *Remote) AddWishlistItem(ctx context.Context, productID uint) (WishlistEntry, error) {
	req := api.NewRequest(http.MethodPost, PathWishlist, addToWishlistRequest{ProductID: productID})
	var out wishlistEntryResponse
	if err := r.do(ctx, "add wishlist item", req, &out); err != nil {
		return WishlistEntry{}, err
	}
	if out.Data == nil {
		return WishlistEntry{}, nil
	}
	return *out.Data, nil
}

// RemoveWishlistItem removes productID from the wishlist.
func (r *Remote) RemoveWishlistItem(ctx context.Context, productID uint) error {
	req := api.NewRequest(http.MethodDelete, fmt.Sprintf("%s/%d", PathWishlist, productID), nil)
	return r.do(ctx, "remove wishlist item", req, nil)
}

// CheckWishlist reports whether productID is wishlisted.
func (r *Remote) CheckWishlist(ctx context.Context, productID uint) (Membership, error) {
	req := api.NewRequest(http.MethodGet, fmt.Sprintf("%s/%d", PathWishlist, productID), nil)
	var out Membership
	if err := r.do(ctx, "check wishlist", req, &out); err != nil {
		return Membership{}, err
	}
	return out, nil
}

// do issues req and decodes the body into out when out is non-nil.
func (r *Remote) do(ctx context.Context, op string, req *api.Request, out any) error {
	resp, err := r.issuer.Issue(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("storefront: %s: %w", op, err)
	}
	return nil
}
