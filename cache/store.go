package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/storesync/api"
	"github.com/jonwraymond/storesync/observe"
	"github.com/jonwraymond/storesync/resilience"
)

// Entry is a point-in-time view of one key.
type Entry struct {
	Key     string
	Value   any
	Present bool

	// Version is bumped by every write to the key, including removals.
	// It is zero only for keys never written.
	Version uint64

	Stale     bool
	UpdatedAt time.Time

	// Fetching reports whether a fetch is in flight for the key.
	Fetching bool
}

// Listener observes writes to one key.
type Listener func(Entry)

// Update is one write applied by Apply.
type Update struct {
	Key   string
	Value any

	// Remove writes "absent" instead of Value.
	Remove bool

	// IfVersion, if non-zero, applies the update only while the key is
	// still at that version.
	IfVersion uint64
}

// Result reports the outcome of one Update.
type Result struct {
	// Version is the key's version after the update was considered.
	Version uint64
	Applied bool
}

// Config configures a Store.
type Config struct {
	// Policy controls freshness. Default: DefaultPolicy().
	Policy Policy

	// Retry controls fetch retries. Default: 3 attempts, retrying network
	// and server failures only.
	Retry resilience.RetryConfig

	// Middleware instruments fetches. Default: none.
	Middleware *observe.Middleware

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

type record struct {
	value     any
	present   bool
	version   uint64
	stale     bool
	updatedAt time.Time
	fetch     *fetch
}

type fetch struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	// Set before done is closed.
	value   any
	err     error
	dropped bool
}

type delivery struct {
	queue   []Entry
	running bool
}

// Store is the in-memory collection cache.
//
// Contract:
//   - Concurrency: safe for concurrent use. Writes to one key are serialized
//     and their notifications are delivered in write order.
//   - Listeners run without the store lock held and may write any key.
//   - Context: Load honors the caller's cancellation; the shared fetch keeps
//     running for other waiters.
type Store struct {
	mu           sync.Mutex
	records      map[string]*record
	listeners    map[string]map[uint64]Listener
	deliveries   map[string]*delivery
	loaders      map[string]LoaderFunc
	clock        uint64
	fetchGen     uint64
	nextListener uint64
	closed       bool

	policy Policy
	retry  *resilience.Retry
	mw     *observe.Middleware
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an empty Store.
func New(cfg Config) *Store {
	if cfg.Retry.RetryIf == nil {
		cfg.Retry.RetryIf = api.IsRetryable
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		records:    make(map[string]*record),
		listeners:  make(map[string]map[uint64]Listener),
		deliveries: make(map[string]*delivery),
		loaders:    make(map[string]LoaderFunc),
		policy:     cfg.Policy,
		retry:      resilience.NewRetry(cfg.Retry),
		mw:         cfg.Middleware,
		now:        cfg.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Get returns the cached value without fetching.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok || !r.present {
		return nil, false
	}
	return r.value, true
}

// GetAs returns the cached value of key as a T.
func GetAs[T any](s *Store, key string) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Lookup returns the full entry for key.
func (s *Store) Lookup(key string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(key)
}

// Snapshot returns the entries for keys under one lock hold.
func (s *Store) Snapshot(keys ...string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(keys))
	for i, key := range keys {
		out[i] = s.entryLocked(key)
	}
	return out
}

// Version returns the key's current version.
func (s *Store) Version(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r.version
	}
	return 0
}

// Set replaces the value of key and returns the new version.
func (s *Store) Set(key string, value any) uint64 {
	return s.Apply(Update{Key: key, Value: value})[0].Version
}

// Delete makes key absent and returns the new version.
func (s *Store) Delete(key string) uint64 {
	return s.Apply(Update{Key: key, Remove: true})[0].Version
}

// SetMany writes several keys under one lock hold, so no listener observes
// a subset of them.
func (s *Store) SetMany(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]Update, len(keys))
	for i, k := range keys {
		updates[i] = Update{Key: k, Value: values[k]}
	}
	s.Apply(updates...)
}

// SetIfVersion writes value only if key is still at version.
func (s *Store) SetIfVersion(key string, value any, version uint64) bool {
	if version == 0 {
		return false
	}
	return s.Apply(Update{Key: key, Value: value, IfVersion: version})[0].Applied
}

// Apply performs updates in order under one lock hold and then delivers
// their notifications.
func (s *Store) Apply(updates ...Update) []Result {
	results := make([]Result, len(updates))
	touched := make([]string, 0, len(updates))

	s.mu.Lock()
	for i, u := range updates {
		r := s.recordLocked(u.Key)
		if u.IfVersion != 0 && r.version != u.IfVersion {
			results[i] = Result{Version: r.version}
			continue
		}
		results[i] = Result{Version: s.writeLocked(u.Key, r, u.Value, !u.Remove), Applied: true}
		touched = appendUnique(touched, u.Key)
	}
	s.mu.Unlock()

	for _, key := range touched {
		s.deliver(key)
	}
	return results
}

// CancelPending detaches the in-flight fetch of each key and cancels its
// context. A detached fetch's result is never applied. It returns the
// number of fetches cancelled.
func (s *Store) CancelPending(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range keys {
		if s.cancelFetchLocked(key) {
			n++
		}
	}
	return n
}

// Subscribe registers fn for writes to key and returns its unsubscribe.
func (s *Store) Subscribe(key string, fn Listener) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	if s.listeners[key] == nil {
		s.listeners[key] = make(map[uint64]Listener)
	}
	s.listeners[key][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners[key], id)
			if len(s.listeners[key]) == 0 {
				delete(s.listeners, key)
			}
		})
	}
}

// Invalidate marks each key stale, keeping its displayed value.
//
// An in-flight fetch may predate the write being reconciled, so it is
// replaced. Keys with listeners or with a replaced fetch are refetched now
// when a loader is registered; the rest are refetched on the next Load.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		r, ok := s.records[key]
		if ok {
			r.stale = true
		}
		replaced := s.cancelFetchLocked(key)
		if s.closed || (!replaced && len(s.listeners[key]) == 0) {
			continue
		}
		if load := s.loaderLocked(key); load != nil {
			s.startFetchLocked(key, load)
		}
	}
}

// Clear drops every entry and cancels every fetch. Listeners of keys that
// held a value are notified of its removal and stay registered.
func (s *Store) Clear() {
	s.mu.Lock()
	var touched []string
	for key, r := range s.records {
		s.cancelFetchLocked(key)
		if r.present {
			s.writeLocked(key, r, nil, false)
			touched = append(touched, key)
		}
	}
	s.records = make(map[string]*record)
	s.mu.Unlock()

	sort.Strings(touched)
	for _, key := range touched {
		s.deliver(key)
	}
}

// Close cancels every fetch. Loads after Close fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	for key := range s.records {
		s.cancelFetchLocked(key)
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Store) recordLocked(key string) *record {
	r, ok := s.records[key]
	if !ok {
		r = &record{}
		s.records[key] = r
	}
	return r
}

func (s *Store) entryLocked(key string) Entry {
	r, ok := s.records[key]
	if !ok {
		return Entry{Key: key}
	}
	return entryOf(key, r)
}

func entryOf(key string, r *record) Entry {
	return Entry{
		Key:       key,
		Value:     r.value,
		Present:   r.present,
		Version:   r.version,
		Stale:     r.stale,
		UpdatedAt: r.updatedAt,
		Fetching:  r.fetch != nil,
	}
}

// writeLocked stores a value (or absence), bumps the version and queues
// the notification.
func (s *Store) writeLocked(key string, r *record, value any, present bool) uint64 {
	s.clock++
	r.version = s.clock
	r.present = present
	if present {
		r.value = value
	} else {
		r.value = nil
	}
	r.stale = false
	r.updatedAt = s.now()

	if len(s.listeners[key]) > 0 {
		d := s.deliveries[key]
		if d == nil {
			d = &delivery{}
			s.deliveries[key] = d
		}
		d.queue = append(d.queue, entryOf(key, r))
	}
	return r.version
}

// deliver drains key's notification queue unless another call is already
// draining it. A listener that writes the same key only queues; the active
// drain delivers it after the current notification.
func (s *Store) deliver(key string) {
	s.mu.Lock()
	d := s.deliveries[key]
	if d == nil || d.running {
		s.mu.Unlock()
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		ev := d.queue[0]
		d.queue = d.queue[1:]
		fns := s.listenersLocked(key)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
		s.mu.Lock()
	}
	delete(s.deliveries, key)
	s.mu.Unlock()
}

func (s *Store) listenersLocked(key string) []Listener {
	m := s.listeners[key]
	if len(m) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = m[id]
	}
	return out
}

func (s *Store) cancelFetchLocked(key string) bool {
	r, ok := s.records[key]
	if !ok || r.fetch == nil {
		return false
	}
	r.fetch.cancel()
	r.fetch = nil
	return true
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
