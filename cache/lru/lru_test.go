package lru

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Set(ctx, "key", []byte("value"), time.Minute)
	require.NoError(t, err)

	v, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), v)
}

func TestGetMissingKey(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "key")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))
	require.NoError(t, c.Delete(ctx, "key"))

	_, ok, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}
