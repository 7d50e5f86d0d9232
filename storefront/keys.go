package storefront

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonwraymond/storesync/cache"
)

// Collection names.
const (
	CollectionCart       = "cart"
	CollectionWishlist   = "wishlist"
	CollectionMembership = "wishlist-membership"
)

// Fixed collection keys.
var (
	KeyCart     = cache.Key(CollectionCart)
	KeyWishlist = cache.Key(CollectionWishlist)
)

// MembershipKey returns the cache key of the wishlist check for productID.
func MembershipKey(productID uint) string {
	return cache.Key(CollectionMembership, cache.P("product_id", productID))
}

// ProductIDFromKey extracts the product id from a membership key.
func ProductIDFromKey(key string) (uint, error) {
	if cache.Collection(key) != CollectionMembership {
		return 0, fmt.Errorf("%w: %q is not a membership key", ErrBadKey, key)
	}
	_, rawQuery, _ := strings.Cut(key, ":")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrBadKey, key, err)
	}
	id, err := strconv.ParseUint(q.Get("product_id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q has no product_id", ErrBadKey, key)
	}
	return uint(id), nil
}
