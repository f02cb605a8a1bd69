package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)

	first, err := cached.Embed(context.Background(), "renewal terms")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "renewal terms")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call must come from cache")
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedderDistinctTexts(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "beta")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderNeverCachesErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(context.Background(), "query")
	require.Error(t, err)

	inner.err = nil
	_, err = cached.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderEvictsAtCapacity(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 2)

	for _, q := range []string{"a", "b", "c"} {
		_, err := cached.Embed(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cached.Len())

	// "a" was evicted and recomputes.
	_, err := cached.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}
