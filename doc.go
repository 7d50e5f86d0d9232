// Package storesync is the client-side consistency layer of a storefront
// app: a cache of the cart and wishlist kept consistent across concurrent
// optimistic mutations, over an authenticated request path that renews
// credentials at most once no matter how many requests fail with 401.
//
// Open builds every component once per session and wires them explicitly:
//
//	cfg, err := config.Load("storesync.toml")
//	...
//	c, err := storesync.Open(ctx, cfg, storesync.Options{
//	    OnSessionEnded: func(ctx context.Context, cause error) { showLogin() },
//	})
//	defer c.Close(ctx)
//
//	if err := c.Login(ctx, email, password); err != nil { ... }
//	item, err := c.Cart.Add(ctx, productID, 1)
//
// The packages can also be used on their own: cache and mutation have no
// storefront knowledge, and auth works with any api.Issuer.
package storesync
