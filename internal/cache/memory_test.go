package cache_test

import (
	"context"
	"testing"

	"gymbro/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Sets(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore()

	require.NoError(t, s.SetAdd(ctx, "k", "b"))
	require.NoError(t, s.SetAdd(ctx, "k", "a"))
	require.NoError(t, s.SetAdd(ctx, "k", "a"))

	members, err := s.SetMembers(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	ok, err := s.SetContains(ctx, "k", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.SetRemove(ctx, "k", "a"))
	require.NoError(t, s.SetRemove(ctx, "missing", "a"))
	ok, err = s.SetContains(ctx, "k", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err = s.SetMembers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMemoryStore_JSON(t *testing.T) {
	ctx := context.Background()
	s := cache.NewMemoryStore()

	var got map[string]string
	found, err := s.GetJSON(ctx, "filters", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetJSON(ctx, "filters", map[string]string{"gym": "Crunch"}))
	found, err = s.GetJSON(ctx, "filters", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Crunch", got["gym"])
}
