package storefront

import (
	"context"

	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/mutation"
)

// WishlistService reads and mutates the cached wishlist and the per-product
// membership checks.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: as CartService.
type WishlistService struct {
	coord  *mutation.Coordinator
	remote *Remote
}

// NewWishlistService creates a WishlistService.
func NewWishlistService(coord *mutation.Coordinator, remote *Remote) *WishlistService {
	return &WishlistService{coord: coord, remote: remote}
}

// Get returns the cached wishlist, fetching it when missing or stale.
func (s *WishlistService) Get(ctx context.Context) (Wishlist, error) {
	return cache.LoadAs[Wishlist](ctx, s.coord.Store(), KeyWishlist)
}

// Contains reports whether productID is wishlisted, from the cached
// membership check for that product.
func (s *WishlistService) Contains(ctx context.Context, productID uint) (bool, error) {
	if productID == 0 {
		return false, ErrInvalidProduct
	}
	m, err := cache.LoadAs[Membership](ctx, s.coord.Store(), MembershipKey(productID))
	if err != nil {
		return false, err
	}
	return m.InWishlist, nil
}

// Add wishlists productID. The wishlist entry and the product's membership
// check are written together and rolled back together.
func (s *WishlistService) Add(ctx context.Context, productID uint) (WishlistEntry, error) {
	if productID == 0 {
		return WishlistEntry{}, ErrInvalidProduct
	}
	return mutation.Execute(ctx, s.coord, mutation.Mutation[WishlistEntry]{
		Name: "wishlist.add",
		Writes: []mutation.Write{
			addToWishlist(productID),
			mutation.Value(MembershipKey(productID), Membership{InWishlist: true}),
		},
		Remote: func(ctx context.Context) (WishlistEntry, error) {
			return s.remote.AddWishlistItem(ctx, productID)
		},
		Commit: func(entry WishlistEntry) []mutation.Write {
			if entry.ID == 0 {
				return nil
			}
			return []mutation.Write{commitWishlistEntry(entry)}
		},
	})
}

// Remove removes productID from the wishlist. The membership check is left
// to the refetch that follows.
func (s *WishlistService) Remove(ctx context.Context, productID uint) error {
	if productID == 0 {
		return ErrInvalidProduct
	}
	_, err := mutation.Execute(ctx, s.coord, mutation.Mutation[struct{}]{
		Name:   "wishlist.remove",
		Writes: []mutation.Write{removeFromWishlist(productID)},
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.RemoveWishlistItem(ctx, productID)
		},
		Invalidate: []string{MembershipKey(productID)},
	})
	return err
}
