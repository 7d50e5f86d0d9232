// Package apitest runs an in-process storefront backend for end-to-end
// tests.
//
// The server mirrors the backend's routes, status codes and JSON bodies for
// login, token renewal, the cart and the wishlist. Tokens are HS256 JWTs
// minted per server. Tests steer it through methods that expire access
// tokens, fail or hold renewals, and inject failures into single routes:
//
//	srv := apitest.NewServer(apitest.Options{})
//	defer srv.Close()
//
//	srv.ExpireAccessTokens()            // next authenticated call gets 401
//	srv.FailNext("PUT /cart/items/{id}", http.StatusInternalServerError)
package apitest
