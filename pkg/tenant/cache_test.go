package tenant

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTTLCacheLoadsOnceAndReusesWithinTTL(t *testing.T) {
	var loads int32
	c := New(func(key string) (string, error) {
		atomic.AddInt32(&loads, 1)
		return "value-for-" + key, nil
	}, time.Minute, 30*time.Second)

	for i := 0; i < 5; i++ {
		v, err := c.Get("tenant-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "value-for-tenant-1" {
			t.Errorf("unexpected value: %q", v)
		}
	}
	if atomic.LoadInt32(&loads) != 1 {
		t.Errorf("expected exactly one load within ttl, got %d", loads)
	}
}

func TestTTLCacheReloadsAfterExpiry(t *testing.T) {
	var loads int32
	c := New(func(key string) (string, error) {
		n := atomic.AddInt32(&loads, 1)
		return "v" + string(rune('0'+n)), nil
	}, 10*time.Millisecond, 5*time.Millisecond)

	if _, err := c.Get("k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	v, err := c.Get("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "v2" {
		t.Errorf("expected a reload past ttl, got %q", v)
	}
}

func TestTTLCachePropagatesLoadError(t *testing.T) {
	c := New(func(key string) (string, error) {
		return "", errBoom
	}, time.Minute, time.Second)

	if _, err := c.Get("k"); err == nil {
		t.Fatal("expected the loader error to propagate")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom = boomErr{}
