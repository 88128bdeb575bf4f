package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSerializesDomain(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	var (
		active    int
		maxActive int
		guard     sync.Mutex
		wg        sync.WaitGroup
	)
	op := func(context.Context) error {
		guard.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		guard.Unlock()

		time.Sleep(20 * time.Millisecond)

		guard.Lock()
		active--
		guard.Unlock()
		return nil
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Do(ctx, DomainQueue, op))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestDoSecondCallerWaitsForFirst(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Do(ctx, DomainQueue, func(context.Context) error {
			record("first start")
			close(firstStarted)
			<-releaseFirst
			record("first end")
			return nil
		})
	}()

	<-firstStarted
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_ = svc.Do(ctx, DomainQueue, func(context.Context) error {
			record("second start")
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(releaseFirst)
	<-done
	<-secondDone

	assert.Equal(t, []string{"first start", "first end", "second start"}, order)
}

func TestDomainsAreIndependent(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	err := svc.Do(ctx, DomainQueue, func(ctx context.Context) error {
		return svc.Do(ctx, DomainAuth, func(context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestDoReleasesOnError(t *testing.T) {
	svc := NewService()
	ctx := context.Background()
	boom := errors.New("boom")

	err := svc.Do(ctx, DomainAuth, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	tctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, svc.Do(tctx, DomainAuth, func(context.Context) error { return nil }))
}

func TestDoReleasesOnPanic(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = svc.Do(ctx, DomainQueue, func(context.Context) error { panic("boom") })
	})

	tctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, svc.Do(tctx, DomainQueue, func(context.Context) error { return nil }))
}

func TestDoUnknownDomain(t *testing.T) {
	svc := NewService(DomainQueue)
	called := false
	err := svc.Do(context.Background(), DomainAuth, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnknownDomain)
	assert.False(t, called)
}

func TestDoWaitHonoursContext(t *testing.T) {
	svc := NewService()
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = svc.Do(context.Background(), DomainQueue, func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := svc.Do(ctx, DomainQueue, func(context.Context) error {
		t.Fatal("op must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLockReturnsValue(t *testing.T) {
	svc := NewService()
	v, err := WithLock(context.Background(), svc, DomainQueue, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = WithLock(context.Background(), svc, Domain("nope"), func(context.Context) (string, error) {
		return "x", nil
	})
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex[string]()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "a")
	require.NoError(t, err)

	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err, "other keys must not block")
	unlockB()

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(tctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA()
	unlockA()
	assert.Equal(t, 0, km.Len())

	unlockA2, err := km.Lock(ctx, "a")
	require.NoError(t, err)
	unlockA2()
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex[int]()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, 7)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, km.Len())
}
