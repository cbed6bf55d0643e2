package lock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/lock"
)

func exclusive(t *testing.T, l lock.Locker, key string) {
	t.Helper()
	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), key, 5*time.Second)
			require.NoError(t, err)
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak)
}

func TestLocalIsExclusive(t *testing.T) {
	exclusive(t, lock.NewLocal(), "k")
}

func TestLocalWaitHonoursContext(t *testing.T) {
	l := lock.NewLocal()
	release, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k", 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Acquire(context.Background(), "other", 0)
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	again()
}

func TestRedisIsExclusive(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()
	exclusive(t, lock.NewRedis(rdb), "clood:test:"+t.Name())
}
