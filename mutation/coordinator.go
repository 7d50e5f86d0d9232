package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/storesync/cache"
	"github.com/jonwraymond/storesync/observe"
)

// ErrNoStore indicates a Coordinator was configured without a store.
var ErrNoStore = errors.New("mutation: cache store is required")

// Status is the lifecycle state of a Pending mutation.
type Status int

const (
	StatusApplied Status = iota + 1
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Mutation describes one optimistic update.
type Mutation[R any] struct {
	// Name identifies the mutation in logs and spans, e.g. "cart.add".
	Name string

	// Writes are the optimistic transforms. Their keys are the mutation's
	// targets: cancelled, snapshotted, rolled back and invalidated.
	Writes []Write

	// Remote performs the server operation.
	Remote func(ctx context.Context) (R, error)

	// Commit returns writes that fold the server's result into the cache
	// on success. Optional.
	Commit func(result R) []Write

	// Settle writes run on every outcome, after commit or rollback, to clear
	// transient state such as loading flags. Optional.
	Settle []Write

	// Invalidate lists extra keys to refetch on settle without writing
	// them. Optional.
	Invalidate []string
}

// Pending is the bookkeeping for one mutation call.
type Pending struct {
	Name       string
	Keys       []string
	Snapshots  []cache.Entry
	Optimistic []uint64
	Status     Status
	Err        error

	// Superseded lists keys whose rollback was skipped because a later
	// write replaced the optimistic value.
	Superseded []string
}

// RolledBack reports whether the mutation failed.
func (p *Pending) RolledBack() bool { return p.Err != nil }

// Config configures a Coordinator.
type Config struct {
	// Store is the cache the mutations target. Required.
	Store *cache.Store

	// Middleware instruments remote operations. Default: none.
	Middleware *observe.Middleware

	// OnSettled observes every settled mutation. Optional.
	OnSettled func(p Pending)
}

// Coordinator executes mutations with the optimistic update protocol.
//
// Contract:
//   - Concurrency: safe for concurrent use. The local phases of concurrent
//     mutations (snapshot+apply, commit/rollback+settle) are serialized; their
//     remote operations run in parallel.
//   - Errors: the remote error is returned unchanged after rollback.
type Coordinator struct {
	store     *cache.Store
	mw        *observe.Middleware
	onSettled func(p Pending)

	mu sync.Mutex
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	return &Coordinator{
		store:     cfg.Store,
		mw:        cfg.Middleware,
		onSettled: cfg.OnSettled,
	}, nil
}

// Store returns the target cache.
func (c *Coordinator) Store() *cache.Store { return c.store }

// Execute runs m through the optimistic update protocol.
func Execute[R any](ctx context.Context, c *Coordinator, m Mutation[R]) (R, error) {
	var zero R
	if m.Remote == nil {
		return zero, fmt.Errorf("mutation %s: no remote operation", m.Name)
	}
	for _, key := range unionKeys(keysOf(m.Writes, m.Settle), m.Invalidate) {
		if err := cache.ValidateKey(key); err != nil {
			return zero, fmt.Errorf("mutation %s: %w: %q", m.Name, err, key)
		}
	}

	p := c.apply(m.Name, m.Writes)

	var result R
	meta := observe.OpMeta{Kind: observe.KindMutation, Name: m.Name}
	if len(p.Keys) > 0 {
		meta.Key = p.Keys[0]
	}
	err := c.mw.Run(ctx, meta, func(ctx context.Context) error {
		var err error
		result, err = m.Remote(ctx)
		return err
	})

	var commit []Write
	if err == nil && m.Commit != nil {
		commit = m.Commit(result)
	}
	c.settle(ctx, p, err, commit, m.Settle, m.Invalidate)

	if err != nil {
		return zero, err
	}
	return result, nil
}

// apply performs steps 1-3: cancel, snapshot, optimistic write.
func (c *Coordinator) apply(name string, writes []Write) *Pending {
	keys := keysOf(writes)
	p := &Pending{Name: name, Keys: keys}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.CancelPending(keys...)
	p.Snapshots = c.store.Snapshot(keys...)

	updates := transformAll(p.Snapshots, writes)
	results := c.store.Apply(updates...)

	p.Optimistic = make([]uint64, len(keys))
	for i, key := range keys {
		for j, u := range updates {
			if u.Key == key {
				p.Optimistic[i] = results[j].Version
			}
		}
	}
	p.Status = StatusApplied
	return p
}

// settle performs steps 5-7.
func (c *Coordinator) settle(ctx context.Context, p *Pending, remoteErr error, commit, settleWrites []Write, extra []string) {
	logger := c.mw.Logger().With(observe.OpMeta{Kind: observe.KindMutation, Name: p.Name})

	c.mu.Lock()
	if remoteErr == nil {
		writes := append(append([]Write(nil), commit...), settleWrites...)
		if len(writes) > 0 {
			current := c.store.Snapshot(keysOf(writes)...)
			c.store.Apply(transformAll(current, writes)...)
		}
	} else {
		p.Err = remoteErr
		c.rollback(ctx, p, settleWrites, logger)
	}
	c.mu.Unlock()

	c.store.Invalidate(unionKeys(unionKeys(p.Keys, keysOf(commit, settleWrites)), extra)...)
	p.Status = StatusSettled

	if c.onSettled != nil {
		c.onSettled(*p)
	}
}

// rollback restores each snapshot while the key still holds this
// mutation's optimistic value. Settle writes apply only to superseded keys;
// a restored snapshot predates any transient state.
func (c *Coordinator) rollback(ctx context.Context, p *Pending, settleWrites []Write, logger observe.Logger) {
	restores := make([]cache.Update, len(p.Keys))
	for i, snap := range p.Snapshots {
		restores[i] = cache.Update{
			Key:       snap.Key,
			Value:     snap.Value,
			Remove:    !snap.Present,
			IfVersion: p.Optimistic[i],
		}
	}
	results := c.store.Apply(restores...)

	superseded := make(map[string]bool)
	for i, r := range results {
		if !r.Applied {
			superseded[p.Keys[i]] = true
			p.Superseded = append(p.Superseded, p.Keys[i])
		}
	}
	if len(p.Superseded) > 0 {
		logger.Warn(ctx, "rollback superseded by a later write",
			observe.F("keys", p.Superseded),
			observe.F("error", p.Err),
		)
	} else {
		logger.Info(ctx, "mutation rolled back", observe.F("keys", p.Keys), observe.F("error", p.Err))
	}

	var late []Write
	for _, w := range settleWrites {
		if superseded[w.Key] {
			late = append(late, w)
		}
	}
	if len(late) > 0 {
		current := c.store.Snapshot(keysOf(late)...)
		c.store.Apply(transformAll(current, late)...)
	}
}

// transformAll folds writes over the given entries, composing transforms
// that target the same key, and returns one update per key.
func transformAll(entries []cache.Entry, writes []Write) []cache.Update {
	type state struct {
		value   any
		present bool
	}
	working := make(map[string]*state, len(entries))
	for _, e := range entries {
		working[e.Key] = &state{value: e.Value, present: e.Present}
	}

	for _, w := range writes {
		st, ok := working[w.Key]
		if !ok {
			st = &state{}
			working[w.Key] = st
		}
		st.value, st.present = w.Transform(st.value, st.present)
		if !st.present {
			st.value = nil
		}
	}

	keys := keysOf(writes)
	updates := make([]cache.Update, len(keys))
	for i, key := range keys {
		st := working[key]
		updates[i] = cache.Update{Key: key, Value: st.value, Remove: !st.present}
	}
	return updates
}

func unionKeys(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, k := range b {
		found := false
		for _, have := range out {
			if have == k {
				found = true
				break
			}
		}
		if !found {
			out = append(out, k)
		}
	}
	return out
}
