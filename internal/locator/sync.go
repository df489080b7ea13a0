package locator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/logging"
	"github.com/any-hub/resource-hub/internal/storage"
)

// FindStorages 重新扫描根目录并返回存储位置列表（已排序）。
func (l *Locator) FindStorages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = nil
	l.findStorages()
	locations := make([]string, 0, len(l.storages))
	for _, st := range l.sortedStorages() {
		locations = append(locations, st.Location())
	}
	return locations
}

// SynchronizeDb 重新扫描存储并与缓存数据库对账；任一存储失败时返回 ErrCannotSynchronizeDb。
func (l *Locator) SynchronizeDb(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = nil
	l.findStorages()
	return l.synchronize(ctx)
}

// findStorages 从零重建存储集合：根目录 FolderStorage + 每个归档一个 ArchiveStorage。
func (l *Locator) findStorages() {
	found := make(map[string]storage.Storage)

	if folder, err := l.newStorage(l.root, l.types); err != nil {
		l.addError(l.root, err)
	} else {
		found[folder.Location()] = folder
	}

	archives, skipped, err := storage.FindArchives(l.root)
	if err != nil {
		l.addError(l.root, err)
	}
	for _, dir := range skipped {
		l.log.WithField("path", dir).Warn("skipping unreadable directory")
	}
	for _, location := range archives {
		st, err := l.newStorage(location, l.types)
		if err != nil {
			l.addError(location, err)
			continue
		}
		found[st.Location()] = st
	}

	l.storages = found
	l.log.WithFields(logrus.Fields{"action": "find_storages", "count": len(found)}).Debug("storages discovered")
}

func (l *Locator) synchronize(ctx context.Context) error {
	l.notify("Synchronizing resource cache database")
	types := l.types.ResourceTypes()

	storages := l.sortedStorages()
	locations := make([]string, 0, len(storages))
	for _, st := range storages {
		locations = append(locations, st.Location())
		if err := l.db.SynchronizeStorage(ctx, st, types); err != nil {
			l.addError(st.Location(), err)
			continue
		}
		l.log.WithFields(logging.StorageFields("synchronize", st.Location(), st.Type().String())).Debug("storage synchronized")
	}

	deactivated, err := l.db.DeactivateMissingStorages(ctx, locations)
	if err != nil {
		l.addError("storages", err)
	} else if deactivated > 0 {
		l.log.WithFields(logrus.Fields{"action": "synchronize", "deactivated": deactivated}).Info("storages no longer present")
	}

	if len(l.errs) > 0 {
		return errors.Wrapf(ErrCannotSynchronizeDb, "%d item(s) failed", len(l.errs))
	}
	return nil
}
