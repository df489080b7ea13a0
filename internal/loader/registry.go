package loader

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var defaultRegistry = NewRegistry()

// Registry 以类型键索引 ResourceType，读写均加锁，可在多个 goroutine 间共享。
type Registry struct {
	mu    sync.RWMutex
	types map[string]ResourceType
}

// NewRegistry 构造注册表，并按顺序注册传入的类型；重复键会 panic。
func NewRegistry(types ...ResourceType) *Registry {
	r := &Registry{types: make(map[string]ResourceType)}
	for _, t := range types {
		r.MustRegister(t)
	}
	return r
}

// Default 返回进程内默认注册表，内置类型通过 loader/builtin 注册。
func Default() *Registry {
	return defaultRegistry
}

// Register 将资源类型加入默认注册表，重复键会返回错误。
func Register(t ResourceType) error {
	return defaultRegistry.Register(t)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(t ResourceType) {
	defaultRegistry.MustRegister(t)
}

// Resolve 返回默认注册表中指定键的资源类型。
func Resolve(key string) (ResourceType, bool) {
	return defaultRegistry.Resolve(key)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Register 将资源类型加入注册表。键会被规整为小写，且不允许包含路径分隔符。
func (r *Registry) Register(t ResourceType) error {
	key := normalizeKey(t.Key)
	if key == "" {
		return fmt.Errorf("resource type key is required")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("resource type %q must be a plain directory name", key)
	}
	t.Key = key
	t.Extensions = normalizeExtensions(t.Extensions)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[key]; exists {
		return fmt.Errorf("resource type %s already registered", key)
	}
	r.types[key] = t
	return nil
}

// MustRegister 在注册失败时 panic。
func (r *Registry) MustRegister(t ResourceType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的资源类型。
func (r *Registry) Resolve(key string) (ResourceType, bool) {
	if key == "" {
		return ResourceType{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[normalizeKey(key)]
	return t, ok
}

// List 返回按键排序的资源类型。
func (r *Registry) List() []ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.types) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.types))
	for key := range r.types {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]ResourceType, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.types[key])
	}
	return result
}

// ResourceTypes 返回所有已注册类型的键。
func (r *Registry) ResourceTypes() []string {
	items := r.List()
	result := make([]string, len(items))
	for i, t := range items {
		result[i] = t.Key
	}
	return result
}

// Accepts 判断文件是否属于指定类型；未注册的类型一律拒绝。
func (r *Registry) Accepts(resourceType, filename string) bool {
	t, ok := r.Resolve(resourceType)
	if !ok {
		return false
	}
	return t.accepts(filename)
}
