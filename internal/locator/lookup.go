package locator

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/cache"
	"github.com/any-hub/resource-hub/internal/logging"
	"github.com/any-hub/resource-hub/internal/storage"
)

// Resource 返回 (storageLocation, resourceLocation) 对应的句柄。storageLocation 为空表示
// 根目录存储，相对路径相对根目录解析；resourceLocation 可带已知类型前缀。
// 缓存 key 由存储、资源类型与文件名组成：不带前缀的名称在首次读取存储时确定类型，
// 之后的查询复用该结果。命中时不做任何 I/O。
func (l *Locator) Resource(storageLocation, resourceLocation string) (*cache.Handle, error) {
	storageLoc := l.normalizeStorage(storageLocation)
	resourceType, filename := l.splitResource(resourceLocation)
	if filename == "" {
		return nil, errors.Wrap(ErrResourceNotFound, "empty resource location")
	}
	if resourceType != "" {
		return l.load(cache.Key{StorageLocation: storageLoc, ResourceType: resourceType, ResourceLocation: filename})
	}

	if resolved, ok := l.resolvedType(storageLoc, filename); ok {
		handle, err := l.load(cache.Key{StorageLocation: storageLoc, ResourceType: resolved, ResourceLocation: filename})
		if !errors.Is(err, ErrResourceNotFound) {
			return handle, err
		}
		// 文件已从原类型目录消失，重新解析。
		l.forgetType(storageLoc, filename)
	}

	st, err := l.registeredStorage(storageLoc, filename)
	if err != nil {
		return nil, err
	}
	res, err := fetch(st, storageLoc, filename)
	if err != nil {
		return nil, err
	}
	l.rememberType(storageLoc, filename, res.ResourceType)

	key := cache.Key{StorageLocation: storageLoc, ResourceType: res.ResourceType, ResourceLocation: filename}
	return l.cache.GetOrLoad(key, func() (*cache.Handle, error) {
		l.log.WithFields(logging.ResourceFields(storageLoc, res.ResourceType+"/"+filename, false)).Debug("resource loaded")
		return newHandle(storageLoc, res), nil
	})
}

// ResourceCached 判断句柄是否已在缓存中，无副作用。
func (l *Locator) ResourceCached(storageLocation, resourceLocation string) bool {
	storageLoc := l.normalizeStorage(storageLocation)
	resourceType, filename := l.splitResource(resourceLocation)
	if filename == "" {
		return false
	}
	if resourceType == "" {
		resolved, ok := l.resolvedType(storageLoc, filename)
		if !ok {
			return false
		}
		resourceType = resolved
	}
	return l.cache.Contains(cache.Key{StorageLocation: storageLoc, ResourceType: resourceType, ResourceLocation: filename})
}

// RemoveResource 删除资源记录并淘汰对应句柄。定位查询失败时不做任何修改。
func (l *Locator) RemoveResource(ctx context.Context, id int64) error {
	location, resourceType, filename, err := l.db.ResourceLocation(ctx, id)
	if err != nil {
		l.log.WithError(err).WithField("resource_id", id).Warn("cannot locate resource for removal")
		return errors.Wrapf(err, "locate resource %d", id)
	}

	l.cache.Remove(cache.Key{
		StorageLocation:  l.normalizeStorage(location),
		ResourceType:     resourceType,
		ResourceLocation: filename,
	})
	if err := l.db.RemoveResource(ctx, id); err != nil {
		return errors.Wrapf(err, "remove resource %d", id)
	}
	l.log.WithFields(logging.ResourceFields(location, resourceType+"/"+filename, false)).WithField("resource_id", id).Info("resource removed")
	return nil
}

// load 按完整 key 查询缓存，未命中时以 "<type>/<file>" 读取存储。
func (l *Locator) load(key cache.Key) (*cache.Handle, error) {
	return l.cache.GetOrLoad(key, func() (*cache.Handle, error) {
		st, err := l.registeredStorage(key.StorageLocation, key.ResourceLocation)
		if err != nil {
			return nil, err
		}
		res, err := fetch(st, key.StorageLocation, key.ResourceType+"/"+key.ResourceLocation)
		if err != nil {
			return nil, err
		}
		l.log.WithFields(logging.ResourceFields(key.StorageLocation, key.ResourceType+"/"+key.ResourceLocation, false)).Debug("resource loaded")
		return newHandle(key.StorageLocation, res), nil
	})
}

func (l *Locator) registeredStorage(storageLoc, resourceLocation string) (storage.Storage, error) {
	l.mu.RLock()
	st, ok := l.storages[storageLoc]
	l.mu.RUnlock()
	if !ok {
		// 调用方在存储登记前访问资源属于编程错误。
		l.log.WithFields(logging.ResourceFields(storageLoc, resourceLocation, false)).
			Error("resource requested from unregistered storage")
		return nil, errors.Wrapf(ErrStorageNotRegistered, "%s", storageLoc)
	}
	return st, nil
}

func fetch(st storage.Storage, storageLoc, name string) (*storage.Resource, error) {
	res, err := st.Resource(name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Wrapf(ErrResourceNotFound, "%s in %s", name, storageLoc)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func newHandle(storageLoc string, res *storage.Resource) *cache.Handle {
	return &cache.Handle{
		StorageLocation: storageLoc,
		Filename:        res.Filename,
		ResourceType:    res.ResourceType,
		Name:            res.Name(),
		Checksum:        res.Checksum,
		Size:            res.Size,
		ModTime:         res.ModTime,
		Data:            res.Data,
	}
}

func (l *Locator) resolvedType(storageLoc, filename string) (string, bool) {
	l.typesMu.RLock()
	defer l.typesMu.RUnlock()
	resourceType, ok := l.resolved[cache.Key{StorageLocation: storageLoc, ResourceLocation: filename}]
	return resourceType, ok
}

func (l *Locator) rememberType(storageLoc, filename, resourceType string) {
	l.typesMu.Lock()
	l.resolved[cache.Key{StorageLocation: storageLoc, ResourceLocation: filename}] = resourceType
	l.typesMu.Unlock()
}

func (l *Locator) forgetType(storageLoc, filename string) {
	l.typesMu.Lock()
	delete(l.resolved, cache.Key{StorageLocation: storageLoc, ResourceLocation: filename})
	l.typesMu.Unlock()
}

// normalizeStorage 将存储位置转换为与 Storage.Location 一致的绝对路径。
func (l *Locator) normalizeStorage(location string) string {
	if location == "" {
		return l.root
	}
	if filepath.IsAbs(location) {
		return filepath.Clean(location)
	}
	return filepath.Join(l.root, location)
}

// splitResource 拆出已知类型前缀："brushes/a.gbr" → ("brushes", "a.gbr")；
// 无前缀或前缀不是已知类型时 resourceType 为空，filename 为规整后的完整路径。
func (l *Locator) splitResource(location string) (resourceType, filename string) {
	clean := cleanResourceLocation(location)
	dir, file := path.Split(clean)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return "", clean
	}
	for _, candidate := range l.types.ResourceTypes() {
		if dir == candidate {
			return candidate, file
		}
	}
	return "", clean
}

func cleanResourceLocation(location string) string {
	if location == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(location)), "/")
}
