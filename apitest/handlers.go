package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jonwraymond/storesync/session"
	"github.com/jonwraymond/storesync/storefront"
)

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Something went wrong", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[body.Email]
	if !ok {
		writeError(w, http.StatusNotFound, "User does not exist", "")
		return
	}
	if u.Password != body.Password {
		writeError(w, http.StatusBadRequest, "Invalid credentials", "")
		return
	}
	tokens, err := s.mintLocked(u)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to generate token", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(u, tokens))
}

func loginResponse(u User, tokens session.Tokens) session.LoginResult {
	return session.LoginResult{
		Message: "Login successful",
		Tokens:  tokens,
		User:    session.Profile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshes++
	gate, held := s.refreshGate, s.refreshHeld
	s.mu.Unlock()

	if gate != nil {
		held <- struct{}{}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	raw, ok := bearer(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Refresh token not found", "")
		return
	}
	c, err := s.parse(raw, tokenRefresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRefresh > 0 {
		s.failRefresh--
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", "renewal refused")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", err.Error())
		return
	}
	u, ok := s.userByIDLocked(c.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", "unknown user")
		return
	}
	tokens, err := s.mintLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate tokens", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tokens refreshed successfully",
		"tokens":  tokens,
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")
	s.mu.Lock()
	p, ok := s.catalog[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cartLocked(userID(r))
	summary := storefront.Recalculate(*cart)
	summary.Items = slices.Clone(summary.Items)
	writeJSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProductID == 0 || body.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "Invalid request data", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.addItemLocked(userID(r), body.ProductID, body.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to add item to cart", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Item added to cart", "data": item})
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "Invalid request data", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cartLocked(userID(r))
	for i := range cart.Items {
		if cart.Items[i].ID == id {
			cart.Items[i].Quantity = body.Quantity
			writeJSON(w, http.StatusOK, map[string]string{"message": "Cart item updated successfully"})
			return
		}
	}
	writeError(w, http.StatusBadRequest, "Failed to update cart item", "record not found")
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cartLocked(userID(r))
	n := len(cart.Items)
	cart.Items = slices.DeleteFunc(cart.Items, func(it storefront.CartItem) bool { return it.ID == id })
	if len(cart.Items) == n {
		writeError(w, http.StatusBadRequest, "Failed to remove item from cart", "record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := slices.Clone(s.wishlists[userID(r)])
	if entries == nil {
		entries = []storefront.WishlistEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (s *Server) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID uint `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProductID == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request data", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	p, ok := s.catalog[body.ProductID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Failed to add to wishlist", "product not found")
		return
	}
	for _, e := range s.wishlists[uid] {
		if e.ProductID == body.ProductID {
			writeError(w, http.StatusBadRequest, "Failed to add to wishlist", "duplicate entry")
			return
		}
	}
	s.nextID++
	s.wishlists[uid] = append(s.wishlists[uid], storefront.WishlistEntry{
		ID: s.nextID, UserID: uid, ProductID: p.ID, Product: p,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Product added to wishlist"})
}

func (s *Server) handleCheckWishlist(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "product_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	in := slices.ContainsFunc(s.wishlists[userID(r)], func(e storefront.WishlistEntry) bool { return e.ProductID == id })
	writeJSON(w, http.StatusOK, storefront.Membership{InWishlist: in})
}

func (s *Server) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r, "product_id")
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userID(r)
	n := len(s.wishlists[uid])
	s.wishlists[uid] = slices.DeleteFunc(s.wishlists[uid], func(e storefront.WishlistEntry) bool { return e.ProductID == id })
	if len(s.wishlists[uid]) == n {
		writeError(w, http.StatusBadRequest, "Failed to remove from wishlist", "record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed from wishlist"})
}

func (s *Server) cartLocked(uid uint) *storefront.Cart {
	c, ok := s.carts[uid]
	if !ok {
		s.nextID++
		c = &storefront.Cart{ID: s.nextID, UserID: uid, Items: []storefront.CartItem{}}
		s.carts[uid] = c
	}
	return c
}

// addItemLocked merges into an existing item the way the backend does: the
// merged item comes back without its product.
func (s *Server) addItemLocked(uid, productID uint, quantity int) (storefront.CartItem, error) {
	p, ok := s.catalog[productID]
	if !ok {
		return storefront.CartItem{}, errors.New("product not found")
	}
	cart := s.cartLocked(uid)
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity += quantity
			merged := cart.Items[i]
			merged.Product = storefront.Product{}
			return merged, nil
		}
	}
	s.nextID++
	item := storefront.CartItem{ID: s.nextID, CartID: cart.ID, ProductID: productID, Product: p, Quantity: quantity}
	cart.Items = append(cart.Items, item)
	return item, nil
}

func (s *Server) userByIDLocked(id uint) (User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

func bearer(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	return uint(n), err
}

// routeKey is "METHOD template" for the matched route.
func routeKey(r *http.Request) string {
	tpl := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if t, err := route.GetPathTemplate(); err == nil {
			tpl = t
		}
	}
	return r.Method + " " + normalizeTemplate(tpl)
}

// normalizeTemplate drops variable patterns: {id:[0-9]+} becomes {id}.
func normalizeTemplate(tpl string) string {
	var b strings.Builder
	for {
		open := strings.IndexByte(tpl, '{')
		if open < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		end := strings.IndexByte(tpl[open:], '}')
		if end < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		name, _, _ := strings.Cut(tpl[open+1:open+end], ":")
		b.WriteString(tpl[:open])
		b.WriteString("{" + name + "}")
		tpl = tpl[open+end+1:]
	}
}

func normalizeRoute(route string) string {
	method, path, _ := strings.Cut(strings.TrimSpace(route), " ")
	return strings.ToUpper(method) + " " + normalizeTemplate(path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]string{"message": message}
	if detail != "" {
		body["error"] = detail
	}
	writeJSON(w, status, body)
}
