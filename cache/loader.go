package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/storesync/observe"
)

// LoaderFunc fetches the server value for key.
type LoaderFunc func(ctx context.Context, key string) (any, error)

// TypedLoader adapts a typed fetch function to LoaderFunc.
func TypedLoader[T any](fn func(ctx context.Context, key string) (T, error)) LoaderFunc {
	return func(ctx context.Context, key string) (any, error) {
		return fn(ctx, key)
	}
}

// Register installs the loader for every key of collection.
func (s *Store) Register(collection string, fn LoaderFunc) {
	s.mu.Lock()
	s.loaders[collection] = fn
	s.mu.Unlock()
}

// Load returns the value of key, fetching it when it is absent, stale or
// older than the policy's stale time. Concurrent loads of one key share a
// single fetch. If the fetch is cancelled while the caller waits, Load
// follows its replacement or returns the value written in its place.
func (s *Store) Load(ctx context.Context, key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, fmt.Errorf("%w: %q", err, key)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if r, ok := s.records[key]; ok && r.present && !r.stale && s.policy.Fresh(r.updatedAt, s.now()) {
		v := r.value
		s.mu.Unlock()
		return v, nil
	}
	var f *fetch
	if r, ok := s.records[key]; ok && r.fetch != nil {
		f = r.fetch
	} else {
		load := s.loaderLocked(key)
		if load == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrNoLoader, Collection(key))
		}
		f = s.startFetchLocked(key, load)
	}
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
		}
		if !f.dropped {
			if f.err != nil {
				return nil, f.err
			}
			return f.value, nil
		}

		s.mu.Lock()
		r, ok := s.records[key]
		if ok && r.fetch != nil {
			f = r.fetch
			s.mu.Unlock()
			continue
		}
		present := ok && r.present
		var v any
		if present {
			v = r.value
		}
		s.mu.Unlock()

		if !present {
			// A fetch that failed on its own keeps its error, e.g. a forced
			// logout that cleared the store while the fetch was renewing.
			if f.err != nil && !errors.Is(f.err, context.Canceled) {
				return nil, f.err
			}
			return nil, ErrFetchCancelled
		}
		return v, nil
	}
}

// LoadAs is Load with a type assertion.
func LoadAs[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	v, err := s.Load(ctx, key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: %s holds %T, not %T", key, v, zero)
	}
	return t, nil
}

func (s *Store) loaderLocked(key string) LoaderFunc {
	return s.loaders[Collection(key)]
}

// startFetchLocked attaches a new fetch to key unless one is in flight.
func (s *Store) startFetchLocked(key string, load LoaderFunc) *fetch {
	r := s.recordLocked(key)
	if r.fetch != nil {
		return r.fetch
	}
	s.fetchGen++
	ctx, cancel := context.WithCancel(s.ctx)
	f := &fetch{gen: s.fetchGen, cancel: cancel, done: make(chan struct{})}
	r.fetch = f
	go s.runFetch(ctx, key, f, load)
	return f
}

func (s *Store) runFetch(ctx context.Context, key string, f *fetch, load LoaderFunc) {
	defer f.cancel()

	var value any
	meta := observe.OpMeta{Kind: observe.KindFetch, Name: Collection(key), Key: key}
	err := s.mw.Run(ctx, meta, func(ctx context.Context) error {
		return s.retry.Execute(ctx, func(ctx context.Context) error {
			v, err := load(ctx, key)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
	})

	s.mu.Lock()
	applied := false
	if r, ok := s.records[key]; ok && r.fetch == f {
		r.fetch = nil
		if err == nil {
			s.writeLocked(key, r, value, true)
			applied = true
		}
	} else {
		f.dropped = true
	}
	f.value, f.err = value, err
	close(f.done)
	s.mu.Unlock()

	if f.dropped {
		s.mw.Logger().With(meta).Debug(s.ctx, "dropped result of cancelled fetch", observe.F("fetch_gen", f.gen))
		return
	}
	if applied {
		s.deliver(key)
	}
}
