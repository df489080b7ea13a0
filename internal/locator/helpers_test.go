package locator

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/resource-hub/internal/cachedb"
	"github.com/any-hub/resource-hub/internal/loader"
	"github.com/any-hub/resource-hub/internal/logging"
	"github.com/any-hub/resource-hub/internal/storage"
)

// fixture 组合一个临时根目录、真实 sqlite 数据库与可计数的存储工厂。
type fixture struct {
	root    string
	db      *cachedb.DB
	loc     *Locator
	fetches *atomic.Int32
	events  []string
}

type countingStorage struct {
	storage.Storage
	fetches *atomic.Int32
}

func (s countingStorage) Resource(name string) (*storage.Resource, error) {
	s.fetches.Add(1)
	return s.Storage.Resource(name)
}

func testTypes() *loader.Registry {
	return loader.NewRegistry(
		loader.ResourceType{Key: "brushes", Extensions: []string{".gbr", ".abr", ".png"}},
		loader.ResourceType{Key: "palettes", Extensions: []string{".gpl"}},
		loader.ResourceType{Key: "paintoppresets", Extensions: []string{".kpp"}},
		loader.ResourceType{Key: "patterns", Extensions: []string{".pat", ".png"}},
	)
}

func newFixture(t *testing.T, root string) *fixture {
	t.Helper()
	db, err := cachedb.Open(context.Background(), cachedb.Options{
		Path:         filepath.Join(t.TempDir(), "resourcecache.sqlite"),
		ResourceRoot: root,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{root: root, db: db, fetches: new(atomic.Int32)}
	loc, err := New(Options{
		ResourceLocation: root,
		Types:            testTypes(),
		Database:         db,
		Logger:           logging.Discard(),
		Observer:         func(msg string) { f.events = append(f.events, msg) },
		StorageFactory: func(location string, types loader.Types) (storage.Storage, error) {
			st, err := storage.New(location, types)
			if err != nil {
				return nil, err
			}
			return countingStorage{Storage: st, fetches: f.fetches}, nil
		},
	})
	require.NoError(t, err)
	f.loc = loc
	return f
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

// writeBundle 生成不带清单的 zip bundle，条目类型取自路径的第一段。
func writeBundle(t *testing.T, p string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	out, err := os.Create(p)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}
