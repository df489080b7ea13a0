package locator

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/storage"
	"github.com/any-hub/resource-hub/internal/version"
)

// VersionMarker 是资源根目录下记录布局版本的文件名。
const VersionMarker = "KRITA_RESOURCE_VERSION"

// Initialize 检测资源根目录状态：需要安装或迁移时从 installSource 复制内置资源并
// 重建缓存数据库，否则与现有存储同步。installSource 为空时只创建目录结构。
// 失败时返回的错误包装 ErrCannotCreateLocation、ErrLocationReadOnly、
// ErrCannotSynchronizeDb 或 ErrCannotInitializeDb 之一。
func (l *Locator) Initialize(ctx context.Context, installSource string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errs = nil
	l.status = Unknown
	l.notify("Checking resource location " + l.root)

	detected, err := l.detectStatus()
	if err != nil {
		l.log.WithError(err).Error("resource location unusable")
		return err
	}
	l.detected = detected
	l.log.WithFields(logrus.Fields{"action": "initialize", "status": detected.String()}).Info("resource location checked")

	if detected != Initialized {
		return l.install(ctx, installSource)
	}

	l.findStorages()
	if err := l.synchronize(ctx); err != nil {
		return err
	}
	l.status = Initialized
	return nil
}

// detectStatus 在任何写入之前确认根目录可写，并根据版本标记判断状态。
func (l *Locator) detectStatus() (Status, error) {
	info, err := os.Stat(l.root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(l.root, 0o755); err != nil {
			return Unknown, errors.Wrapf(ErrCannotCreateLocation, "%s: %v", l.root, err)
		}
		return FirstRun, nil
	case err != nil:
		return Unknown, errors.Wrapf(ErrCannotCreateLocation, "%s: %v", l.root, err)
	case !info.IsDir():
		return Unknown, errors.Wrapf(ErrCannotCreateLocation, "%s is not a directory", l.root)
	}

	if err := probeWritable(l.root); err != nil {
		return Unknown, errors.Wrapf(ErrLocationReadOnly, "%s: %v", l.root, err)
	}

	raw, err := os.ReadFile(filepath.Join(l.root, VersionMarker))
	if err != nil {
		// 读不到标记即视为版本化之前的旧布局。
		return FirstUpdate, nil
	}
	marker := strings.TrimSpace(string(raw))
	if version.Newer(l.version, marker) {
		l.log.WithFields(logrus.Fields{"marker": marker, "running": l.version}).Info("resource layout is outdated")
		return Updating, nil
	}
	return Initialized, nil
}

// install 执行安装/迁移：创建类型目录、复制内置资源、写入版本标记，最后重建数据库。
func (l *Locator) install(ctx context.Context, installSource string) error {
	l.notify("Installing resources into " + l.root)

	types := l.types.ResourceTypes()
	// 先建齐全部类型目录，任一失败时不复制任何文件。
	for _, resourceType := range types {
		dir := filepath.Join(l.root, resourceType)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(ErrCannotCreateLocation, "%s: %v", dir, err)
		}
	}
	if installSource != "" {
		for _, resourceType := range types {
			l.copyType(ctx, installSource, resourceType)
		}
		l.copyArchives(ctx, installSource)
	}

	marker := filepath.Join(l.root, VersionMarker)
	if err := storage.WriteFileAtomic(ctx, marker, strings.NewReader(l.version)); err != nil {
		return errors.Wrapf(ErrCannotCreateLocation, "%s: %v", marker, err)
	}
	// 标记写入即视为布局已就绪；数据库失败时下次启动走同步流程。
	l.status = Initialized
	l.log.WithFields(logrus.Fields{"action": "install", "version": l.version}).Info("resource layout installed")

	l.initializeDb(ctx)
	if len(l.errs) > 0 {
		return errors.Wrapf(ErrCannotInitializeDb, "%d item(s) failed", len(l.errs))
	}
	return nil
}

// copyType 复制 installSource/<type>/ 下的普通文件，已存在的目标不覆盖。
func (l *Locator) copyType(ctx context.Context, installSource, resourceType string) {
	srcDir := filepath.Join(installSource, resourceType)
	items, err := os.ReadDir(srcDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.addError(srcDir, err)
		}
		return
	}
	for _, item := range items {
		if !item.Type().IsRegular() {
			continue
		}
		src := filepath.Join(srcDir, item.Name())
		dst := filepath.Join(l.root, resourceType, item.Name())
		copied, err := storage.CopyIfMissing(ctx, src, dst)
		if err != nil {
			l.addError(src, err)
			continue
		}
		if copied {
			l.log.WithFields(logrus.Fields{"action": "install_copy", "path": dst}).Debug("resource installed")
		}
	}
}

// copyArchives 将 installSource 下任意层级的归档平铺复制到根目录。
func (l *Locator) copyArchives(ctx context.Context, installSource string) {
	archives, skipped, err := storage.FindArchives(installSource)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.addError(installSource, err)
		}
		return
	}
	for _, dir := range skipped {
		l.addError(dir, errors.New("directory could not be read"))
	}
	for _, src := range archives {
		dst := filepath.Join(l.root, filepath.Base(src))
		if _, err := storage.CopyIfMissing(ctx, src, dst); err != nil {
			l.addError(src, err)
		}
	}
}

// initializeDb 全量登记所有存储：先写入全部资源，再写入标签，最后停用已消失的存储。
func (l *Locator) initializeDb(ctx context.Context) {
	l.notify("Building resource cache database")
	l.findStorages()

	types := l.types.ResourceTypes()
	var registered []storage.Storage
	for _, st := range l.sortedStorages() {
		if _, err := l.db.AddStorage(ctx, st, st.Type() != storage.FolderStorageType); err != nil {
			l.addError(st.Location(), err)
			continue
		}
		registered = append(registered, st)
		for _, resourceType := range types {
			if err := l.db.AddResources(ctx, st, resourceType); err != nil {
				l.addError(st.Location()+"/"+resourceType, err)
			}
		}
	}
	for _, st := range registered {
		for _, resourceType := range types {
			if err := l.db.AddTags(ctx, st, resourceType); err != nil {
				l.addError(st.Location()+"/"+resourceType, err)
			}
		}
	}

	// 迁移到已有数据库时，停用已不在磁盘上的存储。
	locations := make([]string, 0, len(l.storages))
	for location := range l.storages {
		locations = append(locations, location)
	}
	if _, err := l.db.DeactivateMissingStorages(ctx, locations); err != nil {
		l.addError("storages", err)
	}
}

// probeWritable 通过创建并删除探测文件判断目录是否可写。
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
