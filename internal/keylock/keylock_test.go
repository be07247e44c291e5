package keylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			unlock, err := l.Lock(context.Background(), "k")
			if err != nil {
				return err
			}
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.Len())
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	l := New()
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLockRespectsContext(t *testing.T) {
	l := New()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.Len())

	unlock()
	unlock()
	assert.Zero(t, l.Len())
}

func TestLockAllOrdersKeys(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys := []string{"x", "y", "z"}
			if i%2 == 0 {
				keys = []string{"z", "y", "x", "x"}
			}
			unlock, err := l.LockAll(context.Background(), keys...)
			if !assert.NoError(t, err) {
				return
			}
			time.Sleep(time.Millisecond)
			unlock()
		}()
	}
	wg.Wait()
	assert.Zero(t, l.Len())
}

func TestLockAllReleasesOnFailure(t *testing.T) {
	l := New()
	unlockB, err := l.Lock(context.Background(), "b")
	require.NoError(t, err)
	defer unlockB()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.LockAll(ctx, "a", "b")
	require.Error(t, err)

	// "a" was released after "b" timed out.
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockA()
}
