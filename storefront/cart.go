package storefront

import (
	"context"
	"fmt"

	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/mutation"
)

// CartService reads and mutates the cached cart.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: a failed mutation has already been rolled back when its error
//     is returned; remote errors are returned unchanged.
type CartService struct {
	coord  *mutation.Coordinator
	remote *Remote
}

// NewCartService creates a CartService.
func NewCartService(coord *mutation.Coordinator, remote *Remote) *CartService {
	return &CartService{coord: coord, remote: remote}
}

// Get returns the cached cart, fetching it when missing or stale.
func (s *CartService) Get(ctx context.Context) (Cart, error) {
	return cache.LoadAs[Cart](ctx, s.coord.Store(), KeyCart)
}

// Peek returns the cached cart without fetching.
func (s *CartService) Peek() (Cart, bool) {
	return cache.GetAs[Cart](s.coord.Store(), KeyCart)
}

// Add adds quantity of productID. An item for the product already in the
// cart has its quantity incremented; otherwise a placeholder item shows
// until the server's item replaces it.
func (s *CartService) Add(ctx context.Context, productID uint, quantity int) (CartItem, error) {
	if productID == 0 {
		return CartItem{}, ErrInvalidProduct
	}
	if quantity < 1 {
		return CartItem{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return mutation.Execute(ctx, s.coord, mutation.Mutation[CartItem]{
		Name:   "cart.add",
		Writes: []mutation.Write{addToCart(productID, quantity)},
		Remote: func(ctx context.Context) (CartItem, error) {
			return s.remote.AddCartItem(ctx, productID, quantity)
		},
		Commit: func(item CartItem) []mutation.Write {
			if item.ID == 0 {
				return nil
			}
			return []mutation.Write{commitCartItem(item)}
		},
	})
}

// UpdateQuantity sets the quantity of an item. The item and the cart are
// flagged loading until the server answers.
func (s *CartService) UpdateQuantity(ctx context.Context, itemID uint, quantity int) (CartItem, error) {
	if itemID == 0 {
		return CartItem{}, ErrInvalidItem
	}
	if quantity < 1 {
		return CartItem{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	return mutation.Execute(ctx, s.coord, mutation.Mutation[CartItem]{
		Name:   "cart.update",
		Writes: []mutation.Write{setQuantity(itemID, quantity)},
		Remote: func(ctx context.Context) (CartItem, error) {
			return s.remote.UpdateCartItem(ctx, itemID, quantity)
		},
		Commit: func(item CartItem) []mutation.Write {
			if item.ID == 0 {
				return nil
			}
			return []mutation.Write{commitCartItem(item)}
		},
		Settle: []mutation.Write{clearLoading(itemID)},
	})
}

// Remove deletes an item from the cart.
func (s *CartService) Remove(ctx context.Context, itemID uint) error {
	if itemID == 0 {
		return ErrInvalidItem
	}
	_, err := mutation.Execute(ctx, s.coord, mutation.Mutation[struct{}]{
		Name:   "cart.remove",
		Writes: []mutation.Write{removeFromCart(itemID)},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.RemoveCartItem(ctx, itemID)
		},
		Settle: []mutation.Write{clearLoading(0)},
	})
	return err
}
