package cachedb

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/storage"
)

const resourceColumns = `
	r.id, r.storage_id, s.location, t.name, r.name, r.filename,
	r.version, r.checksum, r.size, r.timestamp, r.active`

const resourceJoin = `
	FROM resources r
	JOIN storages s ON s.id = r.storage_id
	JOIN resource_types t ON t.id = r.resource_type_id`

// AddResources 将存储中指定类型的资源写入数据库。存储必须已通过 AddStorage 登记。
// 已存在的记录在校验和变化时版本号 +1，并重新激活；存储中已不存在的同类型记录被停用。
func (d *DB) AddResources(ctx context.Context, st storage.Storage, resourceType string) error {
	entries, err := st.Resources(resourceType)
	if err != nil {
		return errors.Wrapf(err, "enumerate %s in %s", resourceType, st.Location())
	}
	return d.withTx(ctx, func(tx *sql.Tx) error {
		storageID, err := d.storageID(ctx, tx, st.Location())
		if err != nil {
			return err
		}
		typeID, err := resourceTypeID(ctx, tx, resourceType)
		if err != nil {
			return err
		}
		if err := deactivateResources(ctx, tx, storageID, typeID); err != nil {
			return errors.Wrapf(err, "deactivate %s in %s", resourceType, st.Location())
		}
		return upsertResources(ctx, tx, storageID, resourceType, entries)
	})
}

// SynchronizeStorage 使数据库与存储当前内容一致：登记缺失的存储、新增资源、
// 更新变化的资源、停用已消失的资源并刷新标签。整个过程在一个事务内完成。
func (d *DB) SynchronizeStorage(ctx context.Context, st storage.Storage, resourceTypes []string) error {
	if !st.Valid() {
		return errors.Errorf("storage %s is not valid", st.Location())
	}

	type typeSnapshot struct {
		entries []storage.Entry
		tags    []storage.Tag
	}
	snapshots := make(map[string]typeSnapshot, len(resourceTypes))
	for _, resourceType := range resourceTypes {
		entries, err := st.Resources(resourceType)
		if err != nil {
			return errors.Wrapf(err, "enumerate %s in %s", resourceType, st.Location())
		}
		tags, err := st.Tags(resourceType)
		if err != nil {
			return errors.Wrapf(err, "read %s tags in %s", resourceType, st.Location())
		}
		snapshots[resourceType] = typeSnapshot{entries: entries, tags: tags}
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		storageID, err := d.upsertStorage(ctx, tx, st, st.Type() != storage.FolderStorageType)
		if err != nil {
			return err
		}
		for _, resourceType := range resourceTypes {
			snapshot := snapshots[resourceType]
			typeID, err := resourceTypeID(ctx, tx, resourceType)
			if err != nil {
				return err
			}
			if err := deactivateResources(ctx, tx, storageID, typeID); err != nil {
				return errors.Wrapf(err, "deactivate %s in %s", resourceType, st.Location())
			}
			if err := upsertResources(ctx, tx, storageID, resourceType, snapshot.entries); err != nil {
				return err
			}
			if err := clearTags(ctx, tx, storageID, typeID); err != nil {
				return errors.Wrapf(err, "clear %s tags in %s", resourceType, st.Location())
			}
			if err := upsertTags(ctx, tx, storageID, resourceType, snapshot.tags); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveResource 删除指定资源记录，记录不存在时返回 ErrNotFound。
func (d *DB) RemoveResource(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete resource %d", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete resource %d", id)
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "resource %d", id)
	}
	return nil
}

// ResourceLocation 通过 resources、storages 与 resource_types 的联结查询返回资源所在存储的
// 绝对路径、资源类型与文件名。
func (d *DB) ResourceLocation(ctx context.Context, id int64) (storageLocation, resourceType, filename string, err error) {
	var location string
	err = d.db.QueryRowContext(ctx, `
		SELECT s.location, t.name, r.filename
		FROM resources r
		JOIN storages s ON s.id = r.storage_id
		JOIN resource_types t ON t.id = r.resource_type_id
		WHERE r.id = ?`, id).Scan(&location, &resourceType, &filename)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", "", errors.Wrapf(ErrNotFound, "resource %d", id)
	}
	if err != nil {
		return "", "", "", errors.Wrapf(err, "lookup location of resource %d", id)
	}
	return d.absolute(location), resourceType, filename, nil
}

// ResourceByID 返回单条资源记录。
func (d *DB) ResourceByID(ctx context.Context, id int64) (*Resource, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+resourceColumns+resourceJoin+` WHERE r.id = ?`, id)
	res, err := d.scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "resource %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lookup resource %d", id)
	}
	return res, nil
}

// Resources 按过滤条件列出资源，按类型与文件名排序。
func (d *DB) Resources(ctx context.Context, filter Filter) ([]Resource, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if !filter.IncludeInactive {
		clauses = append(clauses, "r.active = 1")
	}
	if filter.ResourceType != "" {
		clauses = append(clauses, "t.name = ?")
		args = append(args, filter.ResourceType)
	}
	if filter.StorageLocation != "" {
		clauses = append(clauses, "s.location = ?")
		args = append(args, d.relative(filter.StorageLocation))
	}

	query := `SELECT ` + resourceColumns + resourceJoin
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY t.name, r.filename, s.location`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query resources")
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		res, err := d.scanResource(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan resource")
		}
		out = append(out, *res)
	}
	return out, errors.Wrap(rows.Err(), "iterate resources")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (d *DB) scanResource(row scanner) (*Resource, error) {
	var (
		res      Resource
		location string
		ts       int64
	)
	if err := row.Scan(&res.ID, &res.StorageID, &location, &res.ResourceType, &res.Name, &res.Filename,
		&res.Version, &res.Checksum, &res.Size, &ts, &res.Active); err != nil {
		return nil, err
	}
	res.StorageLocation = d.absolute(location)
	res.Timestamp = fromUnix(ts)
	return &res, nil
}

func deactivateResources(ctx context.Context, q querier, storageID, typeID int64) error {
	_, err := q.ExecContext(ctx, `UPDATE resources SET active = 0 WHERE storage_id = ? AND resource_type_id = ?`, storageID, typeID)
	return err
}

func upsertResources(ctx context.Context, q querier, storageID int64, resourceType string, entries []storage.Entry) error {
	typeID, err := resourceTypeID(ctx, q, resourceType)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO resources (storage_id, resource_type_id, name, filename, checksum, size, timestamp, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT (storage_id, resource_type_id, filename) DO UPDATE SET
				version   = CASE WHEN resources.checksum <> excluded.checksum
				                 THEN resources.version + 1 ELSE resources.version END,
				name      = excluded.name,
				checksum  = excluded.checksum,
				size      = excluded.size,
				timestamp = excluded.timestamp,
				active    = 1`,
			storageID, typeID, entry.Name(), entry.Filename, entry.Checksum, entry.Size,
			unixTime(entry.ModTime)); err != nil {
			return errors.Wrapf(err, "add resource %s/%s", resourceType, entry.Filename)
		}
	}
	return nil
}
