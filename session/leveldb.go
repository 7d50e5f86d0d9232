package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is a CredentialStore backed by a leveldb database.
// Both keys are written and removed in a single batch.
type LevelDBStore struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	owned  bool
	closed bool
}

// OpenLevelDBStore opens (or creates) the database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("session: open leveldb %q: %w", path, err)
	}
	return &LevelDBStore{db: db, owned: true}, nil
}

// NewLevelDBStore wraps an already open database. Close does not close db.
func NewLevelDBStore(db *leveldb.DB) *LevelDBStore {
	return &LevelDBStore{db: db}
}

var syncWrite = &opt.WriteOptions{Sync: true}

// Load reads both keys. A missing key yields ok=false.
func (s *LevelDBStore) Load(ctx context.Context) (Tokens, Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return Tokens{}, Profile{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Tokens{}, Profile{}, false, ErrStoreClosed
	}

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return Tokens{}, Profile{}, false, fmt.Errorf("session: snapshot: %w", err)
	}
	defer snap.Release()

	rawTokens, err := snap.Get([]byte(TokenKey), nil)
	if leveldb.ErrNotFound == err {
		return Tokens{}, Profile{}, false, nil
	} else if err != nil {
		return Tokens{}, Profile{}, false, fmt.Errorf("session: read %s: %w", TokenKey, err)
	}
	rawProfile, err := snap.Get([]byte(ProfileKey), nil)
	if leveldb.ErrNotFound == err {
		return Tokens{}, Profile{}, false, nil
	} else if err != nil {
		return Tokens{}, Profile{}, false, fmt.Errorf("session: read %s: %w", ProfileKey, err)
	}

	var tokens Tokens
	if err := json.Unmarshal(rawTokens, &tokens); err != nil {
		return Tokens{}, Profile{}, false, fmt.Errorf("session: decode %s: %w", TokenKey, err)
	}
	var profile Profile
	if err := json.Unmarshal(rawProfile, &profile); err != nil {
		return Tokens{}, Profile{}, false, fmt.Errorf("session: decode %s: %w", ProfileKey, err)
	}
	return tokens, profile, true, nil
}

// Save writes both keys in one batch.
func (s *LevelDBStore) Save(ctx context.Context, tokens Tokens, profile Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rawTokens, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("session: encode tokens: %w", err)
	}
	rawProfile, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("session: encode profile: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(TokenKey), rawTokens)
	batch.Put([]byte(ProfileKey), rawProfile)
	return s.write(batch)
}

// SaveTokens rewrites the token key.
func (s *LevelDBStore) SaveTokens(ctx context.Context, tokens Tokens) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rawTokens, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("session: encode tokens: %w", err)
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(TokenKey), rawTokens)
	return s.write(batch)
}

// Clear removes both keys in one batch.
func (s *LevelDBStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(TokenKey))
	batch.Delete([]byte(ProfileKey))
	return s.write(batch)
}

func (s *LevelDBStore) write(batch *leveldb.Batch) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("session: write batch: %w", err)
	}
	return nil
}

// Close closes the database if the store opened it. Safe to call twice.
func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

var _ CredentialStore = (*LevelDBStore)(nil)
