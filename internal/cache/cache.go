package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/keylock"
)

// Key 唯一定位一个运行时句柄：规整后的存储绝对路径 + 资源类型 + 类型目录下的文件名。
type Key struct {
	StorageLocation  string
	ResourceType     string
	ResourceLocation string
}

// Handle 是已加载资源的内存表示，由缓存独占持有，调用方只读共享。
type Handle struct {
	StorageLocation string
	Filename        string
	ResourceType    string
	Name            string
	Checksum        string
	Size            int64
	ModTime         time.Time
	Data            []byte
}

// LoadFunc 在缓存未命中时被调用，返回要放入缓存的句柄。
type LoadFunc func() (*Handle, error)

// Stats 是缓存运行统计的快照。
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
}

// Cache 是并发安全的句柄缓存。capacity 为 0 时不淘汰。
type Cache struct {
	capacity int

	mu      sync.RWMutex
	entries map[Key]*Handle
	bounded *lru.Cache

	loading *keylock.Map[Key]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New 创建缓存；maxEntries <= 0 表示不限制容量。
func New(maxEntries int) (*Cache, error) {
	c := &Cache{loading: keylock.New[Key]()}
	if maxEntries <= 0 {
		c.entries = make(map[Key]*Handle)
		return c, nil
	}

	bounded, err := lru.NewWithEvict(maxEntries, func(interface{}, interface{}) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create lru cache")
	}
	c.capacity = maxEntries
	c.bounded = bounded
	return c, nil
}

// Get 查询缓存并记录命中统计。
func (c *Cache) Get(key Key) (*Handle, bool) {
	handle, ok := c.peek(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return handle, ok
}

// Contains 仅判断 key 是否存在，不影响统计与淘汰顺序。
func (c *Cache) Contains(key Key) bool {
	if c.bounded != nil {
		return c.bounded.Contains(key)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// GetOrLoad 命中时直接返回缓存句柄；未命中时在 key 级锁内调用 load 并写入缓存。
// 同一 key 的并发未命中只会触发一次 load。load 失败时不写入任何内容。
func (c *Cache) GetOrLoad(key Key, load LoadFunc) (*Handle, error) {
	if handle, ok := c.Get(key); ok {
		return handle, nil
	}

	unlock := c.loading.Lock(key)
	defer unlock()

	// 等锁期间其他调用者可能已完成加载。
	if handle, ok := c.peek(key); ok {
		return handle, nil
	}

	handle, err := load()
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, errors.Errorf("loader returned no handle for %s", key.ResourceLocation)
	}
	c.add(key, handle)
	return handle, nil
}

// Remove 淘汰指定 key，key 不存在时无副作用。与同一 key 上进行中的 GetOrLoad 互斥，
// 返回后不会再被旧的加载结果写回。
func (c *Cache) Remove(key Key) {
	unlock := c.loading.Lock(key)
	defer unlock()

	if c.bounded != nil {
		c.bounded.Remove(key)
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len 返回当前缓存条目数。
func (c *Cache) Len() int {
	if c.bounded != nil {
		return c.bounded.Len()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats 返回统计快照。手动 Remove 不计入 Evictions。
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
		Capacity:  c.capacity,
	}
}

func (c *Cache) peek(key Key) (*Handle, bool) {
	if c.bounded != nil {
		value, ok := c.bounded.Get(key)
		if !ok {
			return nil, false
		}
		return value.(*Handle), true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	handle, ok := c.entries[key]
	return handle, ok
}

func (c *Cache) add(key Key, handle *Handle) {
	if c.bounded != nil {
		c.bounded.Add(key, handle)
		return
	}
	c.mu.Lock()
	c.entries[key] = handle
	c.mu.Unlock()
}
