package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dormoron/strand/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	store := InitStore(time.Minute)
	ctx := context.Background()

	sess, err := store.Generate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID())

	require.NoError(t, sess.Set(ctx, "username", "tom"))
	val, err := sess.Get(ctx, "username")
	require.NoError(t, err)
	assert.Equal(t, "tom", val)

	_, err = sess.Get(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)

	require.NoError(t, sess.Delete(ctx, "username"))
	_, err = sess.Get(ctx, "username")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, store.Refresh(ctx, "s1"))
	assert.ErrorIs(t, store.Refresh(ctx, "nope"), session.ErrSessionNotFound)

	require.NoError(t, store.Remove(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.NoError(t, store.Remove(ctx, "s1"))
}

func TestStore_Expiration(t *testing.T) {
	store := InitStore(50 * time.Millisecond)
	ctx := context.Background()
	_, err := store.Generate(ctx, "short")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "short")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestStore_Concurrent(t *testing.T) {
	store := InitStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			sess, err := store.Generate(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, sess.Set(ctx, "n", i))
			assert.NoError(t, store.Refresh(ctx, id))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, store.Len())
}
