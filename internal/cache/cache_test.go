package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoadReturnsSameHandle(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceLocation: "p.kpp"}

	var loads int
	load := func() (*Handle, error) {
		loads++
		return &Handle{Filename: "p.kpp"}, nil
	}

	first, err := c.GetOrLoad(key, load)
	if err != nil {
		t.Fatalf("first load error: %v", err)
	}
	second, err := c.GetOrLoad(key, load)
	if err != nil {
		t.Fatalf("second load error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical handle pointers")
	}
	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetOrLoadDoesNotCacheFailures(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceLocation: "missing.gbr"}

	_, err := c.GetOrLoad(key, func() (*Handle, error) { return nil, errors.New("boom") })
	if err == nil {
		t.Fatalf("expected load error")
	}
	if c.Contains(key) {
		t.Fatalf("failed load must not populate the cache")
	}
	if _, err := c.GetOrLoad(key, func() (*Handle, error) { return nil, nil }); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestContainsHasNoSideEffects(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceLocation: "a.gbr"}
	if c.Contains(key) {
		t.Fatalf("empty cache reports key")
	}
	if stats := c.Stats(); stats.Hits != 0 || stats.Misses != 0 {
		t.Fatalf("Contains must not touch stats: %+v", stats)
	}
}

func TestRemoveEvictsKey(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceLocation: "a.gbr"}
	before, _ := c.GetOrLoad(key, func() (*Handle, error) { return &Handle{Filename: "a.gbr"}, nil })

	c.Remove(key)
	c.Remove(key)
	if c.Contains(key) {
		t.Fatalf("key still cached after Remove")
	}

	after, _ := c.GetOrLoad(key, func() (*Handle, error) { return &Handle{Filename: "a.gbr"}, nil })
	if before == after {
		t.Fatalf("expected a fresh handle after removal")
	}
}

func TestBoundedCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 2)
	keys := []Key{
		{StorageLocation: "/root", ResourceLocation: "a"},
		{StorageLocation: "/root", ResourceLocation: "b"},
		{StorageLocation: "/root", ResourceLocation: "c"},
	}
	for _, key := range keys[:2] {
		name := key.ResourceLocation
		if _, err := c.GetOrLoad(key, func() (*Handle, error) { return &Handle{Filename: name}, nil }); err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}
	// 访问 a，使 b 成为最久未使用。
	if _, ok := c.Get(keys[0]); !ok {
		t.Fatalf("expected hit for a")
	}
	if _, err := c.GetOrLoad(keys[2], func() (*Handle, error) { return &Handle{Filename: "c"}, nil }); err != nil {
		t.Fatalf("load c: %v", err)
	}

	if c.Contains(keys[1]) {
		t.Fatalf("expected b to be evicted")
	}
	if !c.Contains(keys[0]) || !c.Contains(keys[2]) {
		t.Fatalf("expected a and c to remain")
	}
	stats := c.Stats()
	if stats.Evictions != 1 || stats.Capacity != 2 || stats.Entries != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceLocation: "shared.kpp"}

	var loads atomic.Int32
	release := make(chan struct{})
	load := func() (*Handle, error) {
		loads.Add(1)
		<-release
		return &Handle{Filename: "shared.kpp"}, nil
	}

	const workers = 8
	results := make([]*Handle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := c.GetOrLoad(key, load)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
			}
			results[i] = handle
		}(i)
	}
	close(release)
	wg.Wait()

	if loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loads.Load())
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d received a different handle", i)
		}
	}
}

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	c, err := New(capacity)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c
}

func TestKeysDifferByResourceType(t *testing.T) {
	c := newTestCache(t, 0)
	brush := Key{StorageLocation: "/root", ResourceType: "brushes", ResourceLocation: "x.png"}
	pattern := Key{StorageLocation: "/root", ResourceType: "patterns", ResourceLocation: "x.png"}

	first, err := c.GetOrLoad(brush, func() (*Handle, error) { return &Handle{ResourceType: "brushes"}, nil })
	if err != nil {
		t.Fatalf("load brush: %v", err)
	}
	second, err := c.GetOrLoad(pattern, func() (*Handle, error) { return &Handle{ResourceType: "patterns"}, nil })
	if err != nil {
		t.Fatalf("load pattern: %v", err)
	}
	if first == second || second.ResourceType != "patterns" {
		t.Fatalf("expected distinct handles per resource type")
	}

	c.Remove(brush)
	if c.Contains(brush) || !c.Contains(pattern) {
		t.Fatalf("remove must only evict the brush handle")
	}
}

func TestRemoveWaitsForInflightLoad(t *testing.T) {
	c := newTestCache(t, 0)
	key := Key{StorageLocation: "/root", ResourceType: "brushes", ResourceLocation: "slow.gbr"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.GetOrLoad(key, func() (*Handle, error) {
			close(started)
			<-release
			return &Handle{Filename: "slow.gbr"}, nil
		})
	}()

	<-started
	removed := make(chan struct{})
	go func() {
		c.Remove(key)
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatalf("remove returned while a load was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
	<-removed

	if c.Contains(key) {
		t.Fatalf("in-flight load must not survive a remove")
	}
}
