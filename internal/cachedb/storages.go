package cachedb

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/storage"
)

// AddStorage 登记存储（已存在时刷新类型与时间戳并重新激活），返回存储 ID。
func (d *DB) AddStorage(ctx context.Context, st storage.Storage, preinstalled bool) (int64, error) {
	var id int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = d.upsertStorage(ctx, tx, st, preinstalled)
		return err
	})
	return id, err
}

// Storages 返回所有已登记的存储，按位置排序。
func (d *DB) Storages(ctx context.Context) ([]Storage, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, storage_type, location, timestamp, pre_installed, active
		FROM storages ORDER BY location`)
	if err != nil {
		return nil, errors.Wrap(err, "query storages")
	}
	defer rows.Close()

	var out []Storage
	for rows.Next() {
		var (
			s        Storage
			location string
			ts       int64
		)
		if err := rows.Scan(&s.ID, &s.TypeName, &location, &ts, &s.PreInstalled, &s.Active); err != nil {
			return nil, errors.Wrap(err, "scan storage")
		}
		s.Location = d.absolute(location)
		s.Type = storage.ParseStorageType(s.TypeName)
		s.Timestamp = fromUnix(ts)
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate storages")
}

// DeactivateMissingStorages 将不在 locations 中的存储及其资源标记为非活跃，返回受影响的存储数。
func (d *DB) DeactivateMissingStorages(ctx context.Context, locations []string) (int64, error) {
	keep := make(map[string]bool, len(locations))
	for _, location := range locations {
		keep[d.relative(location)] = true
	}

	var affected int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, location FROM storages WHERE active = 1`)
		if err != nil {
			return errors.Wrap(err, "query active storages")
		}
		var missing []int64
		for rows.Next() {
			var (
				id       int64
				location string
			)
			if err := rows.Scan(&id, &location); err != nil {
				rows.Close()
				return errors.Wrap(err, "scan storage")
			}
			if !keep[location] {
				missing = append(missing, id)
			}
		}
		if err := rows.Close(); err != nil {
			return errors.Wrap(err, "close storage rows")
		}

		for _, id := range missing {
			if _, err := tx.ExecContext(ctx, `UPDATE storages SET active = 0 WHERE id = ?`, id); err != nil {
				return errors.Wrapf(err, "deactivate storage %d", id)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE resources SET active = 0 WHERE storage_id = ?`, id); err != nil {
				return errors.Wrapf(err, "deactivate resources of storage %d", id)
			}
		}
		affected = int64(len(missing))
		return nil
	})
	return affected, err
}

func (d *DB) upsertStorage(ctx context.Context, q querier, st storage.Storage, preinstalled bool) (int64, error) {
	location := d.relative(st.Location())
	if _, err := q.ExecContext(ctx, `
		INSERT INTO storages (storage_type, location, timestamp, pre_installed, active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (location) DO UPDATE SET
			storage_type = excluded.storage_type,
			timestamp    = excluded.timestamp,
			active       = 1`,
		st.Type().String(), location, unixTime(st.Timestamp()), preinstalled); err != nil {
		return 0, errors.Wrapf(err, "add storage %s", st.Location())
	}
	return d.storageID(ctx, q, st.Location())
}

func (d *DB) storageID(ctx context.Context, q querier, location string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM storages WHERE location = ?`, d.relative(location)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(ErrNotFound, "storage %s", location)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "lookup storage %s", location)
	}
	return id, nil
}
