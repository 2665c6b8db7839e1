package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// fakeClock lets tests move time without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestMemory(ttl time.Duration) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemory(ttl)
	c.now = clock.Now
	return c, clock
}

func TestNewMemory(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	if c.items == nil {
		t.Fatal("NewMemory() returned cache with nil items map")
	}
	if c.ttl != time.Minute {
		t.Errorf("NewMemory() ttl = %v, want %v", c.ttl, time.Minute)
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c, _ := newTestMemory(time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")

	got, ok := c.Get("key1")
	if !ok {
		t.Error("Get() returned false for existing key")
	}
	if got != "value1" {
		t.Errorf("Get() = %v, want %v", got, "value1")
	}
}

func TestMemoryCache_Get_NotFound(t *testing.T) {
	c, _ := newTestMemory(time.Minute)
	defer c.Stop()

	got, ok := c.Get("nonexistent")
	if ok || got != nil {
		t.Errorf("Get() = (%v, %v), want (nil, false)", got, ok)
	}
}

func TestMemoryCache_ExpiresAtTTL(t *testing.T) {
	c, clock := newTestMemory(30 * time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")

	clock.Advance(29 * time.Minute)
	if _, ok := c.Get("key1"); !ok {
		t.Error("Get() should return true before TTL elapses")
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("key1"); ok {
		t.Error("Get() should return false once TTL has elapsed")
	}
}

func TestMemoryCache_SetWithTTL(t *testing.T) {
	c, clock := newTestMemory(time.Minute)
	defer c.Stop()

	c.SetWithTTL("short", "v", 10*time.Second)
	c.SetWithTTL("long", "v", time.Hour)

	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Error("Get(short) should return false after custom TTL expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("Get(long) should return true when custom TTL hasn't expired")
	}
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestMemory(time.Minute)
	defer c.Stop()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Delete("key1")
	c.Delete("nonexistent")

	if _, ok := c.Get("key1"); ok {
		t.Error("Get() should return false after Delete()")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_EvictExpired(t *testing.T) {
	c, clock := newTestMemory(time.Minute)
	defer c.Stop()

	c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	c.Set("new", 2)

	c.evictExpired()

	c.mu.RLock()
	_, hasOld := c.items["old"]
	_, hasNew := c.items["new"]
	c.mu.RUnlock()

	if hasOld {
		t.Error("evictExpired() kept an expired entry")
	}
	if !hasNew {
		t.Error("evictExpired() dropped a live entry")
	}
}

func TestMemoryCache_StopTwice(t *testing.T) {
	c := NewMemory(time.Minute)
	c.Stop()
	c.Stop()
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemory(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared-key", idx*100+j)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("shared-key")
				c.Delete("shared-key")
			}
		}()
	}
	wg.Wait()
}

func TestEmbeddingCache_RoundTrip(t *testing.T) {
	backend, _ := newTestMemory(time.Hour)
	defer backend.Stop()
	c := NewEmbeddingCache(backend, 0)

	if _, ok := c.Get("abc"); ok {
		t.Fatal("Get() hit on empty cache")
	}

	c.Set("abc", []float32{0.1, 0.2})
	got, ok := c.Get("abc")
	if !ok || len(got) != 2 || got[1] != 0.2 {
		t.Errorf("Get() = %v, %v", got, ok)
	}
}

func TestEmbeddingCache_DecodesJSONForm(t *testing.T) {
	backend, _ := newTestMemory(time.Hour)
	defer backend.Stop()
	c := NewEmbeddingCache(backend, 0)

	// what a JSON backend hands back
	backend.Set(embeddingKey("h"), []interface{}{0.5, 1.0})

	got, ok := c.Get("h")
	if !ok || len(got) != 2 || got[0] != 0.5 {
		t.Errorf("Get() = %v, %v, want [0.5 1]", got, ok)
	}
}

func TestFeedCache_ExpiryAndInvalidate(t *testing.T) {
	backend, clock := newTestMemory(time.Hour)
	defer backend.Stop()

	c := NewFeedCache(backend, 30*time.Minute)
	c.now = clock.Now

	payload := models.FeedPayload{UserID: "u1", TotalItems: 3}
	entry := c.Set("u1", payload)
	if want := clock.Now().Add(30 * time.Minute); !entry.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", entry.ExpiresAt, want)
	}

	clock.Advance(29*time.Minute + 59*time.Second)
	got, ok := c.Get("u1")
	if !ok || got.Payload.TotalItems != 3 {
		t.Fatalf("Get() before expiry = %+v, %v", got, ok)
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("u1"); ok {
		t.Error("Get() at expires_at should miss")
	}

	c.Set("u1", payload)
	c.Invalidate("u1")
	if _, ok := c.Get("u1"); ok {
		t.Error("Get() after Invalidate() should miss")
	}
}

func TestFeedCache_DecodesJSONForm(t *testing.T) {
	backend, clock := newTestMemory(time.Hour)
	defer backend.Stop()

	c := NewFeedCache(backend, 30*time.Minute)
	c.now = clock.Now

	backend.Set(feedKey("u2"), map[string]interface{}{
		"userId":    "u2",
		"expiresAt": clock.Now().Add(time.Minute).Format(time.RFC3339Nano),
		"payload":   map[string]interface{}{"userId": "u2", "totalItems": 7},
	})

	got, ok := c.Get("u2")
	if !ok || got.Payload.TotalItems != 7 {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
}

func TestMemoryLocker_Serializes(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "u1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		unlock2, err := l.Lock(ctx, "u1")
		if err == nil {
			close(acquired)
			unlock2()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock() acquired while first held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock() never acquired after unlock")
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	defer u1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	u2, err := l.Lock(ctx2, "u2")
	if err != nil {
		t.Fatalf("Lock(u2) error = %v", err)
	}
	u2()
}

func TestMemoryLocker_ContextCancelled(t *testing.T) {
	l := NewMemoryLocker()

	unlock, _ := l.Lock(context.Background(), "u1")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := l.Lock(ctx, "u1"); err == nil {
		t.Error("Lock() should fail when context expires while waiting")
	}
}

func TestMemoryLocker_ReleasesKeys(t *testing.T) {
	l := NewMemoryLocker()

	unlock, _ := l.Lock(context.Background(), "u1")
	unlock()
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.locks) != 0 {
		t.Errorf("locks map has %d entries after release, want 0", len(l.locks))
	}
}
