package keylock

import "sync"

// Map 为每个 key 提供互斥锁，引用计数归零后回收。零值不可用，需通过 New 构造。
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New 创建空的锁表。
func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*entry)}
}

// Lock 获取 key 对应的锁，返回释放函数。
func (m *Map[K]) Lock(key K) func() {
	m.mu.Lock()
	lock := m.locks[key]
	if lock == nil {
		lock = &entry{}
		m.locks[key] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len 返回当前持有或等待中的 key 数量。
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
