package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/mutation"
)

var catalog = map[uint]Product{
	3: {ID: 3, Name: "Desk Lamp", Price: 20, Category: "Home", Stock: 10},
	7: {ID: 7, Name: "Headphones", Price: 45.5, Category: "Electronics", Stock: 4},
	9: {ID: 9, Name: "Monitor", Price: 150, Category: "Electronics", Stock: 2},
}

// backend is an in-memory storefront API behind api.Issuer.
type backend struct {
	mu       sync.Mutex
	cart     Cart
	nextID   uint
	wishlist []WishlistEntry
	fail     error
	gate     chan struct{}
	entered  chan struct{}
	calls    map[string]int
}

func newBackend() *backend {
	return &backend{cart: Cart{ID: 1, UserID: 1}, nextID: 100, calls: make(map[string]int)}
}

// failWrites makes every mutating call fail with err.
func (b *backend) failWrites(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

// hold blocks mutating calls until release is called. entered receives
// once per blocked call.
func (b *backend) hold() (entered <-chan struct{}, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 8)
	gate := b.gate
	return b.entered, func() { close(gate) }
}

func (b *backend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[call]
}

func (b *backend) seedItem(productID uint, qty int) CartItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(productID, qty)
}

func (b *backend) addLocked(productID uint, qty int) CartItem {
	for i, it := range b.cart.Items {
		if it.ProductID == productID {
			b.cart.Items[i].Quantity += qty
			// Merged items come back without the product preloaded.
			merged := b.cart.Items[i]
			merged.Product = Product{}
			return merged
		}
	}
	b.nextID++
	it := CartItem{ID: b.nextID, CartID: b.cart.ID, ProductID: productID, Product: catalog[productID], Quantity: qty}
	b.cart.Items = append(b.cart.Items, it)
	return it
}

func (b *backend) Issue(ctx context.Context, req *api.Request) (*api.Response, error) {
	b.mu.Lock()
	call := req.Method + " " + routeOf(req.Path)
	b.calls[call]++
	gate, entered, fail := b.gate, b.entered, b.fail
	b.mu.Unlock()

	if req.Method != http.MethodGet {
		if gate != nil {
			entered <- struct{}{}
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if fail != nil {
			return nil, fail
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := idOf(req.Path)
	switch call {
	case "GET /cart":
		c := Recalculate(b.cart)
		c.Items = append([]CartItem(nil), c.Items...)
		return reply(http.StatusOK, map[string]any{"data": c})
	case "POST /cart/items":
		body := req.Body.(addToCartRequest)
		it := b.addLocked(body.ProductID, body.Quantity)
		return reply(http.StatusCreated, map[string]any{"message": "Item added to cart", "data": it})
	case "PUT /cart/items/:id":
		body := req.Body.(updateCartItemRequest)
		for i := range b.cart.Items {
			if b.cart.Items[i].ID == id {
				b.cart.Items[i].Quantity = body.Quantity
				return reply(http.StatusOK, map[string]any{"message": "Cart item updated successfully"})
			}
		}
		return notFound()
	case "DELETE /cart/items/:id":
		for i := range b.cart.Items {
			if b.cart.Items[i].ID == id {
				b.cart.Items = append(b.cart.Items[:i], b.cart.Items[i+1:]...)
				return reply(http.StatusOK, map[string]any{"message": "Item removed from cart"})
			}
		}
		return notFound()
	case "GET /wishlist":
		return reply(http.StatusOK, map[string]any{"data": append([]WishlistEntry(nil), b.wishlist...)})
	case "POST /wishlist":
		body := req.Body.(addToWishlistRequest)
		b.nextID++
		b.wishlist = append(b.wishlist, WishlistEntry{ID: b.nextID, UserID: 1, ProductID: body.ProductID, Product: catalog[body.ProductID]})
		return reply(http.StatusCreated, map[string]any{"message": "Product added to wishlist"})
	case "DELETE /wishlist/:id":
		for i, e := range b.wishlist {
			if e.ProductID == id {
				b.wishlist = append(b.wishlist[:i], b.wishlist[i+1:]...)
				return reply(http.StatusOK, map[string]any{"message": "Product removed from wishlist"})
			}
		}
		return notFound()
	case "GET /wishlist/:id":
		in := false
		for _, e := range b.wishlist {
			in = in || e.ProductID == id
		}
		return reply(http.StatusOK, Membership{InWishlist: in})
	}
	return notFound()
}

func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func idOf(path string) uint {
	n, _ := strconv.ParseUint(path[strings.LastIndexByte(path, '/')+1:], 10, 32)
	return uint(n)
}

func reply(status int, v any) (*api.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &api.Response{StatusCode: status, Header: http.Header{}, Body: body}, nil
}

func notFound() (*api.Response, error) {
	resp, _ := reply(http.StatusNotFound, map[string]string{"message": "not found"})
	return resp, &api.Error{Kind: api.KindValidation, StatusCode: http.StatusNotFound, Message: "not found"}
}

type fixture struct {
	backend  *backend
	store    *cache.Store
	cart     *CartService
	wishlist *WishlistService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newBackend()
	store := cache.New(cache.Config{})
	t.Cleanup(store.Close)

	coord, err := mutation.New(mutation.Config{Store: store})
	if err != nil {
		t.Fatalf("mutation.New: %v", err)
	}
	remote := NewRemote(b)
	RegisterLoaders(store, remote)
	return &fixture{
		backend:  b,
		store:    store,
		cart:     NewCartService(coord, remote),
		wishlist: NewWishlistService(coord, remote),
	}
}

func (f *fixture) peekCart(t *testing.T) Cart {
	t.Helper()
	c, ok := f.cart.Peek()
	if !ok {
		t.Fatal("cart not cached")
	}
	return c
}
