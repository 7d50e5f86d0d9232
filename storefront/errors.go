package storefront

import "errors"

var (
	// ErrInvalidProduct indicates a zero product id.
	ErrInvalidProduct = errors.New("storefront: invalid product id")

	// ErrInvalidItem indicates a zero cart item id.
	ErrInvalidItem = errors.New("storefront: invalid cart item id")

	// ErrInvalidQuantity indicates a quantity below one.
	ErrInvalidQuantity = errors.New("storefront: quantity must be at least 1")

	// ErrBadKey indicates a cache key that does not belong to a collection
	// this package loads.
	ErrBadKey = errors.New("storefront: malformed cache key")
)
