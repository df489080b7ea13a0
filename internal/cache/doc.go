// Package cache holds the runtime resource handle cache. Handles are keyed by
// (storage location, resource type, filename) and shared by pointer, so two lookups
// of the same key observe the same object until the key is evicted. The cache
// is unbounded by default; a positive capacity switches it to LRU eviction
// backed by hashicorp/golang-lru. Concurrent misses for one key are collapsed
// so the loader runs at most once per key at a time.
package cache
