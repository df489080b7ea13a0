package cachedb

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound 表示请求的记录不存在。
var ErrNotFound = errors.New("cache database record not found")

// Options 控制数据库文件位置以及存储路径的相对化基准。
type Options struct {
	// Path 是 sqlite 文件路径；":memory:" 仅用于测试。
	Path string
	// ResourceRoot 下的存储以相对路径记录，根目录自身记为 ""。
	ResourceRoot string
}

// DB 封装 sqlite 连接，所有方法可并发调用。
type DB struct {
	db   *sql.DB
	path string
	root string
}

// querier 抽象 *sql.DB 与 *sql.Tx 的公共方法。
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open 打开（必要时创建）缓存数据库并执行迁移。
func Open(ctx context.Context, opts Options) (*DB, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("cache database path is empty")
	}
	root := ""
	if opts.ResourceRoot != "" {
		abs, err := filepath.Abs(opts.ResourceRoot)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve resource root %s", opts.ResourceRoot)
		}
		root = abs
	}

	dsn := opts.Path
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create cache database directory for %s", opts.Path)
		}
		dsn = "file:" + (&url.URL{Path: opts.Path}).EscapedPath()
	}
	dsn += "?_foreign_keys=on&_busy_timeout=5000"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open cache database %s", opts.Path)
	}
	// sqlite 只允许单写者，单连接避免事务间的 SQLITE_BUSY。
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "connect cache database %s", opts.Path)
	}
	if _, err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{db: conn, path: opts.Path, root: root}, nil
}

// Close 关闭底层连接。
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path 返回数据库文件路径。
func (d *DB) Path() string { return d.path }

// DriverVersion 返回链接进来的 sqlite 库版本。
func DriverVersion() string {
	version, _, _ := sqlite3.Version()
	return version
}

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// relative 将绝对存储路径转换为数据库中保存的形式。
func (d *DB) relative(location string) string {
	clean := filepath.Clean(location)
	if d.root == "" {
		return clean
	}
	if clean == d.root {
		return ""
	}
	rel, err := filepath.Rel(d.root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return clean
	}
	return filepath.ToSlash(rel)
}

// absolute 是 relative 的逆操作。
func (d *DB) absolute(stored string) string {
	if stored == "" {
		return d.root
	}
	native := filepath.FromSlash(stored)
	if filepath.IsAbs(native) || d.root == "" {
		return native
	}
	return filepath.Join(d.root, native)
}

func unixTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func resourceTypeID(ctx context.Context, q querier, name string) (int64, error) {
	if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO resource_types (name) VALUES (?)`, name); err != nil {
		return 0, errors.Wrapf(err, "register resource type %s", name)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM resource_types WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "lookup resource type %s", name)
	}
	return id, nil
}
