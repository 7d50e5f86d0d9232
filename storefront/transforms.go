package storefront

import "github.com/jonwraymond/storesync/mutation"

// Transforms never modify the value they receive. An absent collection
// stays absent; the next fetch brings the server's version.

// addToCart increments the item holding productID, or appends a
// placeholder item for it.
func addToCart(productID uint, quantity int) mutation.Write {
	return mutation.Typed(KeyCart, func(old Cart, ok bool) (Cart, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		for i := range next.Items {
			if next.Items[i].ProductID == productID {
				next.Items[i].Quantity += quantity
				return Recalculate(next), true
			}
		}
		next.Items = append(next.Items, CartItem{
			CartID:      old.ID,
			ProductID:   productID,
			Product:     placeholderProduct(productID),
			Quantity:    quantity,
			Placeholder: true,
		})
		return Recalculate(next), true
	})
}

// commitCartItem replaces the item for the server item's product. A server
// item without product details keeps the cached product.
func commitCartItem(item CartItem) mutation.Write {
	return mutation.Typed(KeyCart, func(old Cart, ok bool) (Cart, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		for i := range next.Items {
			if next.Items[i].ProductID != item.ProductID {
				continue
			}
			merged := item
			if !merged.Product.Loaded() {
				merged.Product = next.Items[i].Product
			}
			merged.Loading = next.Items[i].Loading
			next.Items[i] = merged
			return Recalculate(next), true
		}
		return old, true
	})
}

// setQuantity sets an item's quantity and marks it and the cart loading.
func setQuantity(itemID uint, quantity int) mutation.Write {
	return mutation.Typed(KeyCart, func(old Cart, ok bool) (Cart, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		for i := range next.Items {
			if next.Items[i].ID == itemID {
				next.Items[i].Quantity = quantity
				next.Items[i].Loading = true
			}
		}
		next.Loading = true
		return Recalculate(next), true
	})
}

// removeFromCart filters an item out and marks the cart loading.
func removeFromCart(itemID uint) mutation.Write {
	return mutation.Typed(KeyCart, func(old Cart, ok bool) (Cart, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		next.Items = next.Items[:0]
		for _, it := range old.Items {
			if it.ID != itemID {
				next.Items = append(next.Items, it)
			}
		}
		next.Loading = true
		return Recalculate(next), true
	})
}

// clearLoading clears the cart's loading flag and the item's, if itemID is
// non-zero.
func clearLoading(itemID uint) mutation.Write {
	return mutation.Typed(KeyCart, func(old Cart, ok bool) (Cart, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		next.Loading = false
		if itemID != 0 {
			for i := range next.Items {
				if next.Items[i].ID == itemID {
					next.Items[i].Loading = false
				}
			}
		}
		return next, true
	})
}

// addToWishlist appends a placeholder entry for productID unless one is
// already present.
func addToWishlist(productID uint) mutation.Write {
	return mutation.Typed(KeyWishlist, func(old Wishlist, ok bool) (Wishlist, bool) {
		if !ok {
			return old, false
		}
		if old.Contains(productID) {
			return old, true
		}
		next := old.clone()
		next.Entries = append(next.Entries, WishlistEntry{
			ProductID:   productID,
			Product:     placeholderProduct(productID),
			Placeholder: true,
		})
		return next, true
	})
}

// commitWishlistEntry replaces the entry for the server entry's product.
func commitWishlistEntry(entry WishlistEntry) mutation.Write {
	return mutation.Typed(KeyWishlist, func(old Wishlist, ok bool) (Wishlist, bool) {
		if !ok {
			return old, false
		}
		next := old.clone()
		for i := range next.Entries {
			if next.Entries[i].ProductID != entry.ProductID {
				continue
			}
			merged := entry
			if !merged.Product.Loaded() {
				merged.Product = next.Entries[i].Product
			}
			next.Entries[i] = merged
			return next, true
		}
		return old, true
	})
}

// removeFromWishlist filters productID out of the wishlist.
func removeFromWishlist(productID uint) mutation.Write {
	return mutation.Typed(KeyWishlist, func(old Wishlist, ok bool) (Wishlist, bool) {
		if !ok {
			return old, false
		}
		next := Wishlist{Entries: make([]WishlistEntry, 0, len(old.Entries))}
		for _, e := range old.Entries {
			if e.ProductID != productID {
				next.Entries = append(next.Entries, e)
			}
		}
		return next, true
	})
}
