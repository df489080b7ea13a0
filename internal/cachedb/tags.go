package cachedb

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/storage"
)

// AddTags 以存储当前声明的标签替换其旧声明。存储必须已通过 AddStorage 登记。
// 标签按 (类型, 文件名) 关联到任一活跃存储中的资源，与写入顺序无关。
func (d *DB) AddTags(ctx context.Context, st storage.Storage, resourceType string) error {
	tags, err := st.Tags(resourceType)
	if err != nil {
		return errors.Wrapf(err, "read %s tags in %s", resourceType, st.Location())
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
		if err := clearTags(ctx, tx, storageID, typeID); err != nil {
			return errors.Wrapf(err, "clear %s tags in %s", resourceType, st.Location())
		}
		return upsertTags(ctx, tx, storageID, resourceType, tags)
	})
}

// TagsFor 返回资源关联的所有标签：声明标签的存储必须处于活跃状态。
func (d *DB) TagsFor(ctx context.Context, resourceID int64) ([]Tag, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT DISTINCT g.id, g.url, g.name, g.comment, t.name
		FROM resources r
		JOIN tags g ON g.resource_type_id = r.resource_type_id
		JOIN resource_tags rt ON rt.tag_id = g.id AND rt.filename = r.filename
		JOIN storages src ON src.id = rt.storage_id AND src.active = 1
		JOIN resource_types t ON t.id = g.resource_type_id
		WHERE r.id = ?
		ORDER BY g.url`, resourceID)
	if err != nil {
		return nil, errors.Wrapf(err, "query tags of resource %d", resourceID)
	}
	defer rows.Close()

	var out []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.URL, &tag.Name, &tag.Comment, &tag.ResourceType); err != nil {
			return nil, errors.Wrap(err, "scan tag")
		}
		out = append(out, tag)
	}
	return out, errors.Wrap(rows.Err(), "iterate tags")
}

// clearTags 删除 storageID 对 resourceType 的全部标签声明，其他存储的声明不受影响。
func clearTags(ctx context.Context, q querier, storageID, typeID int64) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM resource_tags
		WHERE storage_id = ? AND tag_id IN (SELECT id FROM tags WHERE resource_type_id = ?)`,
		storageID, typeID)
	return err
}

func upsertTags(ctx context.Context, q querier, storageID int64, resourceType string, tags []storage.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	typeID, err := resourceTypeID(ctx, q, resourceType)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		url := tag.URL
		if url == "" {
			url = tag.Name
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO tags (resource_type_id, url, name, comment)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (url, resource_type_id) DO UPDATE SET
				name    = excluded.name,
				comment = CASE WHEN excluded.comment <> '' THEN excluded.comment ELSE tags.comment END`,
			typeID, url, tag.Name, tag.Comment); err != nil {
			return errors.Wrapf(err, "add tag %s", url)
		}
		var tagID int64
		if err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE url = ? AND resource_type_id = ?`, url, typeID).Scan(&tagID); err != nil {
			return errors.Wrapf(err, "lookup tag %s", url)
		}
		for _, filename := range tag.Resources {
			if _, err := q.ExecContext(ctx, `
				INSERT OR IGNORE INTO resource_tags (tag_id, storage_id, filename)
				VALUES (?, ?, ?)`,
				tagID, storageID, filename); err != nil {
				return errors.Wrapf(err, "link tag %s to %s", url, filename)
			}
		}
	}
	return nil
}
