// internal/rescache/cache_test.go
//
// Unit-tests for the TTL resolution cache.
//
// Run: go test ./internal/rescache -v

package rescache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGet_CachesWithinTTL(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	var calls int32
	lookup := func(ctx context.Context, key string) (Resolution, error) {
		atomic.AddInt32(&calls, 1)
		return Resolution{Slug: "acme", FirstPage: "home"}, nil
	}

	for i := 0; i < 3; i++ {
		res, err := c.Get(context.Background(), KeySubdomain, "acme", lookup)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if res.Slug != "acme" || res.FirstPage != "home" {
			t.Fatalf("unexpected resolution: %+v", res)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("lookup calls = %d, want 1", n)
	}
}

func TestGet_ExpiryTriggersFreshLookup(t *testing.T) {
	c := New(10*time.Millisecond, time.Hour)
	defer c.Close()

	var calls int32
	lookup := func(ctx context.Context, key string) (Resolution, error) {
		atomic.AddInt32(&calls, 1)
		return Resolution{Slug: "acme", FirstPage: "home"}, nil
	}

	if _, err := c.Get(context.Background(), KeySubdomain, "acme", lookup); err != nil {
		t.Fatalf("Get: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), KeySubdomain, "acme", lookup); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("lookup calls = %d, want 2", n)
	}
}

func TestGet_KeyspacesAreIndependent(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	var calls int32
	lookup := func(ctx context.Context, key string) (Resolution, error) {
		atomic.AddInt32(&calls, 1)
		return Resolution{Slug: key}, nil
	}

	if _, err := c.Get(context.Background(), KeySubdomain, "acme", lookup); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), KeyCustomDomain, "acme", lookup); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("lookup calls = %d, want one per keyspace", n)
	}
}

func TestGet_ErrorIsNotCached(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	boom := errors.New("store down")
	var calls int32
	lookup := func(ctx context.Context, key string) (Resolution, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Resolution{}, boom
		}
		return Resolution{Slug: "acme"}, nil
	}

	if _, err := c.Get(context.Background(), KeySubdomain, "acme", lookup); !errors.Is(err, boom) {
		t.Fatalf("first Get err = %v, want %v", err, boom)
	}
	res, err := c.Get(context.Background(), KeySubdomain, "acme", lookup)
	if err != nil || res.Slug != "acme" {
		t.Fatalf("second Get = %+v, %v", res, err)
	}
}

func TestGet_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	c := New(time.Minute, time.Hour)
	defer c.Close()

	var calls int32
	release := make(chan struct{})
	lookup := func(ctx context.Context, key string) (Resolution, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Resolution{Slug: "acme"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background(), KeySubdomain, "acme", lookup)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("lookup calls = %d, want 1 (singleflight)", n)
	}
}
