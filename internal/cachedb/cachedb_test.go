package cachedb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/resource-hub/internal/loader"
	"github.com/any-hub/resource-hub/internal/storage"
)

func testTypes() *loader.Registry {
	return loader.NewRegistry(
		loader.ResourceType{Key: "brushes", Extensions: []string{".gbr"}},
		loader.ResourceType{Key: "palettes", Extensions: []string{".gpl"}},
	)
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func openTestDB(t *testing.T, root string) *DB {
	t.Helper()
	db, err := Open(context.Background(), Options{
		Path:         filepath.Join(t.TempDir(), "cache", "resourcecache.sqlite"),
		ResourceRoot: root,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resourcecache.sqlite")
	ctx := context.Background()

	db, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, Options{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, DriverVersion())
}

func TestAddStorageStoresRelativeLocation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	ctx := context.Background()
	db := openTestDB(t, root)

	folder := storage.NewFolderStorage(root, testTypes())
	id, err := db.AddStorage(ctx, folder, false)
	require.NoError(t, err)

	again, err := db.AddStorage(ctx, folder, false)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	var stored string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT location FROM storages WHERE id = ?`, id).Scan(&stored))
	assert.Equal(t, "", stored)

	storages, err := db.Storages(ctx)
	require.NoError(t, err)
	require.Len(t, storages, 1)
	assert.Equal(t, root, storages[0].Location)
	assert.Equal(t, storage.FolderStorageType, storages[0].Type)
	assert.True(t, storages[0].Active)
}

func TestAddResourcesRequiresStorage(t *testing.T) {
	root := t.TempDir()
	db := openTestDB(t, root)

	err := db.AddResources(context.Background(), storage.NewFolderStorage(root, testTypes()), "brushes")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddResourcesAndLocation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "palettes", "warm.gpl"), "GIMP Palette")
	ctx := context.Background()
	db := openTestDB(t, root)
	folder := storage.NewFolderStorage(root, testTypes())

	_, err := db.AddStorage(ctx, folder, false)
	require.NoError(t, err)
	require.NoError(t, db.AddResources(ctx, folder, "brushes"))
	require.NoError(t, db.AddResources(ctx, folder, "brushes"))

	resources, err := db.Resources(ctx, Filter{ResourceType: "brushes"})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	res := resources[0]
	assert.Equal(t, "a.gbr", res.Filename)
	assert.Equal(t, "a", res.Name)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, "0cc175b9c0f1b6a831c399e269772661", res.Checksum)

	location, resourceType, filename, err := db.ResourceLocation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, root, location)
	assert.Equal(t, "brushes", resourceType)
	assert.Equal(t, "a.gbr", filename)

	_, _, _, err = db.ResourceLocation(ctx, res.ID+100)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSynchronizeStorageTracksChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "brushes", "b.gbr"), "b")
	ctx := context.Background()
	db := openTestDB(t, root)
	folder := storage.NewFolderStorage(root, testTypes())
	types := testTypes().ResourceTypes()

	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))
	all, err := db.Resources(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "changed")
	require.NoError(t, os.Remove(filepath.Join(root, "brushes", "b.gbr")))
	writeFile(t, filepath.Join(root, "palettes", "new.gpl"), "GIMP Palette")
	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))

	active, err := db.Resources(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a.gbr", active[0].Filename)
	assert.Equal(t, 2, active[0].Version)
	assert.Equal(t, "new.gpl", active[1].Filename)

	everything, err := db.Resources(ctx, Filter{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, everything, 3)
	for _, res := range everything {
		if res.Filename == "b.gbr" {
			assert.False(t, res.Active)
		}
	}

	// 文件恢复后记录重新激活，版本不变。
	writeFile(t, filepath.Join(root, "brushes", "b.gbr"), "b")
	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))
	brushes, err := db.Resources(ctx, Filter{ResourceType: "brushes"})
	require.NoError(t, err)
	require.Len(t, brushes, 2)
	assert.Equal(t, 1, brushes[1].Version)
}

func TestSynchronizeStorageRejectsInvalidStorage(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	missing := storage.NewFolderStorage(filepath.Join(t.TempDir(), "gone"), testTypes())
	assert.Error(t, db.SynchronizeStorage(context.Background(), missing, []string{"brushes"}))
}

func TestTagsAreLinkedByFilename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "tags", "brushes", "ink.tag"), "[Desktop Entry]\nURL=ink\nName=Ink\nComment=Inking\nResources=a.gbr;missing.gbr\n")
	ctx := context.Background()
	db := openTestDB(t, root)
	folder := storage.NewFolderStorage(root, testTypes())

	_, err := db.AddStorage(ctx, folder, false)
	require.NoError(t, err)
	require.NoError(t, db.AddResources(ctx, folder, "brushes"))
	require.NoError(t, db.AddTags(ctx, folder, "brushes"))
	require.NoError(t, db.AddTags(ctx, folder, "brushes"))

	resources, err := db.Resources(ctx, Filter{ResourceType: "brushes"})
	require.NoError(t, err)
	require.Len(t, resources, 1)

	tags, err := db.TagsFor(ctx, resources[0].ID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "ink", tags[0].URL)
	assert.Equal(t, "Ink", tags[0].Name)
	assert.Equal(t, "Inking", tags[0].Comment)
	assert.Equal(t, "brushes", tags[0].ResourceType)
}

func TestRemoveResource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	ctx := context.Background()
	db := openTestDB(t, root)
	folder := storage.NewFolderStorage(root, testTypes())
	require.NoError(t, db.SynchronizeStorage(ctx, folder, []string{"brushes"}))

	resources, err := db.Resources(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	id := resources[0].ID

	require.NoError(t, db.RemoveResource(ctx, id))
	assert.True(t, errors.Is(db.RemoveResource(ctx, id), ErrNotFound))
	_, err = db.ResourceByID(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeactivateMissingStorages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "sketch.abr"), "8BIM")
	ctx := context.Background()
	db := openTestDB(t, root)

	folder := storage.NewFolderStorage(root, testTypes())
	library, err := storage.NewArchiveStorage(filepath.Join(root, "sketch.abr"))
	require.NoError(t, err)
	require.NoError(t, db.SynchronizeStorage(ctx, folder, []string{"brushes"}))
	require.NoError(t, db.SynchronizeStorage(ctx, library, []string{"brushes"}))

	affected, err := db.DeactivateMissingStorages(ctx, []string{root})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	storages, err := db.Storages(ctx)
	require.NoError(t, err)
	require.Len(t, storages, 2)
	for _, s := range storages {
		if s.Type == storage.AdobeBrushLibraryType {
			assert.False(t, s.Active)
			assert.True(t, s.PreInstalled)
			assert.Equal(t, "sketch.abr", filepath.Base(s.Location))
		} else {
			assert.True(t, s.Active)
		}
	}

	active, err := db.Resources(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a.gbr", active[0].Filename)
}

func TestAddResourcesDeactivatesVanished(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "brushes", "b.gbr"), "b")
	ctx := context.Background()
	db := openTestDB(t, root)
	folder := storage.NewFolderStorage(root, testTypes())

	_, err := db.AddStorage(ctx, folder, false)
	require.NoError(t, err)
	require.NoError(t, db.AddResources(ctx, folder, "brushes"))

	require.NoError(t, os.Remove(filepath.Join(root, "brushes", "b.gbr")))
	require.NoError(t, db.AddResources(ctx, folder, "brushes"))

	active, err := db.Resources(ctx, Filter{ResourceType: "brushes"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a.gbr", active[0].Filename)
}

func TestTagsSurviveSynchronizeAcrossStorages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "brushes", "a.gbr"), "a")
	writeFile(t, filepath.Join(root, "sketch.abr"), "8BIM")
	writeFile(t, filepath.Join(root, "tags", "brushes", "fav.tag"), "[Desktop Entry]\nURL=fav\nName=Favorites\nResources=sketch.abr;a.gbr\n")
	ctx := context.Background()
	db := openTestDB(t, root)

	folder := storage.NewFolderStorage(root, testTypes())
	library, err := storage.NewArchiveStorage(filepath.Join(root, "sketch.abr"))
	require.NoError(t, err)
	types := []string{"brushes"}

	tagCounts := func() map[string]int {
		resources, err := db.Resources(ctx, Filter{ResourceType: "brushes"})
		require.NoError(t, err)
		counts := make(map[string]int, len(resources))
		for _, res := range resources {
			tags, err := db.TagsFor(ctx, res.ID)
			require.NoError(t, err)
			counts[res.Filename] = len(tags)
		}
		return counts
	}

	// 声明标签的存储先于被标记资源所在的存储同步。
	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))
	require.NoError(t, db.SynchronizeStorage(ctx, library, types))
	assert.Equal(t, map[string]int{"a.gbr": 1, "sketch.abr": 1}, tagCounts())

	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))
	require.NoError(t, db.SynchronizeStorage(ctx, library, types))
	assert.Equal(t, map[string]int{"a.gbr": 1, "sketch.abr": 1}, tagCounts())

	// 删除标签文件后，该存储的声明随下一次同步清除。
	require.NoError(t, os.Remove(filepath.Join(root, "tags", "brushes", "fav.tag")))
	require.NoError(t, db.SynchronizeStorage(ctx, folder, types))
	assert.Equal(t, map[string]int{"a.gbr": 0, "sketch.abr": 0}, tagCounts())
}
