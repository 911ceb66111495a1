package transient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "deposit:abc", []byte(`{"user_id":7}`), time.Minute))

		value, err := store.Get(ctx, "deposit:abc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"user_id":7}`), value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired key", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Nanosecond))
		time.Sleep(5 * time.Millisecond)

		_, err := store.Get(ctx, "short")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))

		value, err := store.Get(ctx, "forever")
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", []byte("x"), time.Minute))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, err := store.Get(ctx, "gone")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing key is fine.
		assert.NoError(t, store.Delete(ctx, "gone"))
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "copy", []byte("abc"), time.Minute))

		value, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		value[0] = 'x'

		again, err := store.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})
}
