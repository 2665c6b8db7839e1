package cache

import (
	"encoding/json"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// decodeInto copies a cached value into dst. Memory backends hand back the
// stored value as-is; JSON backends hand back maps and slices, which are
// re-encoded into the target type.
func decodeInto(v interface{}, dst interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// EmbeddingCache stores article vectors keyed by content hash
type EmbeddingCache struct {
	backend Cache
	ttl     time.Duration
}

// NewEmbeddingCache wraps backend. A zero ttl uses the backend default.
func NewEmbeddingCache(backend Cache, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{backend: backend, ttl: ttl}
}

func embeddingKey(hash string) string {
	return "emb:" + hash
}

func (c *EmbeddingCache) Get(hash string) ([]float32, bool) {
	v, ok := c.backend.Get(embeddingKey(hash))
	if !ok {
		return nil, false
	}
	if vec, ok := v.([]float32); ok {
		return vec, true
	}
	var vec []float32
	if !decodeInto(v, &vec) {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Set(hash string, vec []float32) {
	if c.ttl > 0 {
		c.backend.SetWithTTL(embeddingKey(hash), vec, c.ttl)
		return
	}
	c.backend.Set(embeddingKey(hash), vec)
}

// FeedCache stores one feed payload per user with an explicit expiry
type FeedCache struct {
	backend Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewFeedCache wraps backend with the given entry lifetime
func NewFeedCache(backend Cache, ttl time.Duration) *FeedCache {
	return &FeedCache{backend: backend, ttl: ttl, now: time.Now}
}

func feedKey(userID string) string {
	return "feed:" + userID
}

// TTL returns the lifetime given to new entries
func (c *FeedCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached entry for userID when present and not expired
func (c *FeedCache) Get(userID string) (models.FeedCacheEntry, bool) {
	v, ok := c.backend.Get(feedKey(userID))
	if !ok {
		return models.FeedCacheEntry{}, false
	}

	entry, ok := v.(models.FeedCacheEntry)
	if !ok && !decodeInto(v, &entry) {
		return models.FeedCacheEntry{}, false
	}
	if entry.Expired(c.now()) {
		return models.FeedCacheEntry{}, false
	}
	return entry, true
}

// Set stores payload for userID and returns the entry written
func (c *FeedCache) Set(userID string, payload models.FeedPayload) models.FeedCacheEntry {
	now := c.now()
	entry := models.FeedCacheEntry{
		UserID:    userID,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
		Payload:   payload,
	}
	c.backend.SetWithTTL(feedKey(userID), entry, c.ttl)
	return entry
}

func (c *FeedCache) Invalidate(userID string) {
	c.backend.Delete(feedKey(userID))
}
