package storefront

import (
	"context"

	"github.com/jonwraymond/storesync/cache"
)

// RegisterLoaders installs the fetchers for the cart, wishlist and
// wishlist-membership collections.
func RegisterLoaders(store *cache.Store, remote *Remote) {
	store.Register(CollectionCart, cache.TypedLoader(func(ctx context.Context, _ string) (Cart, error) {
		return remote.GetCart(ctx)
	}))
	store.Register(CollectionWishlist, cache.TypedLoader(func(ctx context.Context, _ string) (Wishlist, error) {
		return remote.GetWishlist(ctx)
	}))
	store.Register(CollectionMembership, cache.TypedLoader(func(ctx context.Context, key string) (Membership, error) {
		id, err := ProductIDFromKey(key)
		if err != nil {
			return Membership{}, err
		}
		return remote.CheckWishlist(ctx, id)
	}))
}
