// Package storefront binds the cart and wishlist collections to the cache
// and the mutation protocol.
//
// Three collections are tracked, each under a fixed cache key:
//
//	cart                                   Cart
//	wishlist                               Wishlist
//	wishlist-membership:product_id=<id>    Membership
//
// Reads go through the cache loaders registered by RegisterLoaders. Writes go
// through CartService and WishlistService, which apply an optimistic value,
// call the backend through a Remote, and roll back on failure.
package storefront
