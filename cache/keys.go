package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Param is one query parameter of a cache key.
type Param struct {
	Name  string
	Value any
}

// P is shorthand for Param{Name: name, Value: value}.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Key builds the canonical key for a collection and its parameters.
// Parameters are sorted by name, so order does not matter:
//
//	Key("cart")                                  // "cart"
//	Key("wishlist-membership", P("product_id", 7)) // "wishlist-membership:product_id=7"
func Key(collection string, params ...Param) string {
	if len(params) == 0 {
		return collection
	}
	sorted := make([]Param, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(collection)
	b.WriteByte(':')
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fmt.Sprint(p.Value)))
	}
	return b.String()
}

// Collection returns the collection part of a key.
func Collection(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// ValidateKey checks if a key is usable.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
