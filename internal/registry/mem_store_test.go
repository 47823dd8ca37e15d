package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemStore_SetAndHGetAll(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", map[string]string{"a": "1"}, time.Minute))

	got, ok, err := m.HGetAll(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", got["a"])
}

func TestMemStore_HGetAllMissingKey(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	_, ok, err := m.HGetAll(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_ExpiredKeyNotReturned(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k1", map[string]string{"a": "1"}, -time.Second))

	_, ok, err := m.HGetAll(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_TouchExtendsTTL(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k1", map[string]string{"a": "1"}, time.Millisecond))
	require.NoError(t, m.Touch(ctx, "k1", time.Minute))

	_, ok, err := m.HGetAll(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemStore_DeleteRemovesKey(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k1", map[string]string{"a": "1"}, time.Minute))
	require.NoError(t, m.Delete(ctx, "k1"))

	_, ok, err := m.HGetAll(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_SetOperations(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.SAdd(ctx, "streams:all", "s1"))
	require.NoError(t, m.SAdd(ctx, "streams:all", "s2"))

	members, err := m.SMembers(ctx, "streams:all")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"s1", "s2"}, members)

	require.NoError(t, m.SRem(ctx, "streams:all", "s1"))

	members, err = m.SMembers(ctx, "streams:all")
	require.NoError(t, err)
	require.Equal(t, []string{"s2"}, members)
}

func TestMemStore_SweepRemovesExpiredKeys(t *testing.T) {
	m := newMemStore()
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k1", map[string]string{"a": "1"}, -time.Second))

	m.sweep()

	m.mu.Lock()
	_, stillThere := m.hashes["k1"]
	m.mu.Unlock()

	require.False(t, stillThere)
}
