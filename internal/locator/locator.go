package locator

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/cache"
	"github.com/any-hub/resource-hub/internal/loader"
	"github.com/any-hub/resource-hub/internal/logging"
	"github.com/any-hub/resource-hub/internal/storage"
	"github.com/any-hub/resource-hub/internal/version"
)

// Database 是 Locator 依赖的缓存数据库操作集合，由 cachedb.DB 实现。
type Database interface {
	AddStorage(ctx context.Context, st storage.Storage, preinstalled bool) (int64, error)
	AddResources(ctx context.Context, st storage.Storage, resourceType string) error
	AddTags(ctx context.Context, st storage.Storage, resourceType string) error
	SynchronizeStorage(ctx context.Context, st storage.Storage, resourceTypes []string) error
	DeactivateMissingStorages(ctx context.Context, locations []string) (int64, error)
	ResourceLocation(ctx context.Context, id int64) (storageLocation, resourceType, filename string, err error)
	RemoveResource(ctx context.Context, id int64) error
}

// StorageFactory 根据路径构造存储后端，默认为 storage.New。
type StorageFactory func(location string, types loader.Types) (storage.Storage, error)

// Options 描述构造 Locator 所需的协作者。
type Options struct {
	// ResourceLocation 是资源根目录，会被转换为绝对路径。
	ResourceLocation string
	Types            loader.Types
	Database         Database
	// Cache 为空时按 MaxCachedResources 新建（0 表示不限制）。
	Cache              *cache.Cache
	MaxCachedResources int
	Logger             *logrus.Logger
	Observer           Observer
	StorageFactory     StorageFactory
	// Version 为空时使用 version.Version。
	Version string
}

// Locator 管理资源根目录、存储集合与运行时句柄缓存。
type Locator struct {
	root       string
	types      loader.Types
	db         Database
	cache      *cache.Cache
	log        *logrus.Entry
	observer   Observer
	newStorage StorageFactory
	version    string

	mu       sync.RWMutex
	status   Status
	detected Status
	storages map[string]storage.Storage
	errs     []ItemError

	// resolved 记录不带类型前缀的名称在各存储中解析到的类型。
	typesMu  sync.RWMutex
	resolved map[cache.Key]string
}

// New 校验选项并构造 Locator，不触碰磁盘。
func New(opts Options) (*Locator, error) {
	if strings.TrimSpace(opts.ResourceLocation) == "" {
		return nil, errors.New("resource location is empty")
	}
	if opts.Types == nil {
		return nil, errors.New("resource types are required")
	}
	if opts.Database == nil {
		return nil, errors.New("cache database is required")
	}
	root, err := filepath.Abs(opts.ResourceLocation)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve resource location %s", opts.ResourceLocation)
	}

	c := opts.Cache
	if c == nil {
		c, err = cache.New(opts.MaxCachedResources)
		if err != nil {
			return nil, err
		}
	}
	factory := opts.StorageFactory
	if factory == nil {
		factory = storage.New
	}
	ver := opts.Version
	if ver == "" {
		ver = version.Version
	}

	return &Locator{
		root:       root,
		types:      opts.Types,
		db:         opts.Database,
		cache:      c,
		log:        logging.Component(opts.Logger, "locator").WithField("root", root),
		observer:   opts.Observer,
		newStorage: factory,
		version:    ver,
		storages:   make(map[string]storage.Storage),
		resolved:   make(map[cache.Key]string),
	}, nil
}

// ResourceLocationBase 返回资源根目录的绝对路径。
func (l *Locator) ResourceLocationBase() string { return l.root }

// Status 返回当前状态；Initialize 成功后为 Initialized。
func (l *Locator) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// DetectedStatus 返回最近一次 Initialize 在磁盘上检测到的状态。
func (l *Locator) DetectedStatus() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detected
}

// ErrorMessages 返回最近一次批量操作累积的条目错误。
func (l *Locator) ErrorMessages() []ItemError {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ItemError, len(l.errs))
	copy(out, l.errs)
	return out
}

// Storages 返回当前存储集合，按位置排序。
func (l *Locator) Storages() []storage.Storage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedStorages()
}

// CacheStats 返回运行时缓存统计。
func (l *Locator) CacheStats() cache.Stats {
	return l.cache.Stats()
}

func (l *Locator) sortedStorages() []storage.Storage {
	out := make([]storage.Storage, 0, len(l.storages))
	for _, st := range l.storages {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location() < out[j].Location() })
	return out
}

func (l *Locator) notify(message string) {
	if l.observer != nil {
		l.observer(message)
	}
}

// addError 记录条目错误并以 warn 级别输出。
func (l *Locator) addError(item string, err error) {
	l.errs = append(l.errs, ItemError{Item: item, Reason: err.Error()})
	l.log.WithFields(logrus.Fields{"item": item}).Warn(err.Error())
}
