// Package cache provides a content-addressed get-or-compute cache for expensive
// pipeline calls (extraction, embeddings, per-field answers).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
)

// Store is the backing key/value store. Keys are hex sha256 digests.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Key hashes a namespace and an ordered list of parts into a content address.
// Parts are length-prefixed so ("ab","c") and ("a","bc") never collide.
func Key(namespace string, parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	write([]byte(namespace))
	for _, p := range parts {
		write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StringKey is Key for string parts.
func StringKey(namespace string, parts ...string) string {
	bs := make([][]byte, len(parts))
	for i, p := range parts {
		bs[i] = []byte(p)
	}
	return Key(namespace, bs...)
}

// GetOrCompute returns the cached value for key, or runs compute and stores its result.
// A nil store bypasses caching. Compute errors are never cached. Store failures are logged
// and never fail the call: a broken read recomputes, a broken write still returns the value.
func GetOrCompute[T any](ctx context.Context, store Store, key string, compute func(context.Context) (T, error)) (T, bool, error) {
	if store == nil {
		v, err := compute(ctx)
		return v, false, err
	}

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		slog.Default().Warn("cache.get.failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, true, nil
		}
		// undecodable entry: recompute and overwrite
	}

	v, err := compute(ctx)
	if err != nil {
		return v, false, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Default().Warn("cache.encode.failed", "key", key, "error", err)
		return v, false, nil
	}
	if err := store.Put(ctx, key, b); err != nil {
		slog.Default().Warn("cache.put.failed", "key", key, "error", err)
	}
	return v, false, nil
}

// Seed stores v under key, letting tests pre-populate results.
func Seed[T any](ctx context.Context, store Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, b)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
