package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, StringKey("ns", "ab", "c"), StringKey("ns", "a", "bc"))
	assert.NotEqual(t, StringKey("ns1", "a"), StringKey("ns2", "a"))
	assert.Equal(t, StringKey("ns", "a", "b"), StringKey("ns", "a", "b"))
	assert.Len(t, StringKey("ns"), 64)
}

func TestGetOrCompute_ComputesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	calls := 0
	compute := func(context.Context) ([]string, error) {
		calls++
		return []string{"page one", "page two"}, nil
	}

	v, hit, err := GetOrCompute(ctx, store, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"page one", "page two"}, v)

	v, hit, err = GetOrCompute(ctx, store, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"page one", "page two"}, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_NilStoreBypasses(t *testing.T) {
	calls := 0
	for i := 0; i < 3; i++ {
		_, hit, err := GetOrCompute(context.Background(), nil, "k", func(context.Context) (int, error) {
			calls++
			return 7, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 3, calls)
}

func TestGetOrCompute_SeededAndErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, Seed(ctx, store, "seeded", 42))

	v, hit, err := GetOrCompute(ctx, store, "seeded", func(context.Context) (int, error) {
		t.Fatal("compute must not run for a seeded key")
		return 0, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, _, err = GetOrCompute(ctx, store, "fails", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.Len())
}

type brokenStore struct {
	getErr, putErr error
	puts           int
}

func (s *brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, s.getErr
}

func (s *brokenStore) Put(context.Context, string, []byte) error {
	s.puts++
	return s.putErr
}

func TestGetOrCompute_StoreFailuresDoNotFail(t *testing.T) {
	ctx := context.Background()
	compute := func(context.Context) (string, error) { return "page text", nil }

	putFails := &brokenStore{putErr: errors.New("database is locked")}
	v, hit, err := GetOrCompute(ctx, putFails, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "page text", v)
	assert.Equal(t, 1, putFails.puts)

	getFails := &brokenStore{getErr: errors.New("disk I/O error")}
	v, hit, err = GetOrCompute(ctx, getFails, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "page text", v)
}
