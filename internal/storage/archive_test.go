package storage

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleStorageWithManifest(t *testing.T) {
	p := writeBundle(t, filepath.Join(t.TempDir(), "ink.bundle"), map[string]string{
		"brushes/tip.gbr":           "tip",
		"paintoppresets/pencil.kpp": "pencil",
		"brushes/unlisted.gbr":      "not in manifest",
	}, sampleManifest)

	s, err := NewArchiveStorage(p)
	require.NoError(t, err)
	require.True(t, s.Valid())
	assert.Equal(t, BundleStorageType, s.Type())

	brushes, err := s.Resources("brushes")
	require.NoError(t, err)
	require.Len(t, brushes, 1)
	assert.Equal(t, "tip.gbr", brushes[0].Filename)
	assert.Equal(t, int64(3), brushes[0].Size)

	res, err := s.Resource("pencil.kpp")
	require.NoError(t, err)
	assert.Equal(t, "paintoppresets", res.ResourceType)
	assert.Equal(t, []byte("pencil"), res.Data)

	_, err = s.Resource("brushes/pencil.kpp")
	assert.True(t, errors.Is(err, ErrNotFound))

	tags, err := s.Tags("brushes")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Favorites", tags[0].Name)
	assert.Equal(t, []string{"tip.gbr"}, tags[0].Resources)
	assert.Equal(t, "Ink", tags[1].URL)
}

func TestBundleStorageWithoutManifest(t *testing.T) {
	p := writeBundle(t, filepath.Join(t.TempDir(), "plain.bundle"), map[string]string{
		"palettes/warm.gpl":  "GIMP Palette",
		"nested/deep/x.gbr":  "ignored",
		"toplevel-file.txt":  "ignored",
	}, "")

	s, err := NewArchiveStorage(p)
	require.NoError(t, err)

	entries, err := s.Resources("palettes")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "warm.gpl", entries[0].Filename)

	tags, err := s.Tags("palettes")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestBundleStorageInvalidZip(t *testing.T) {
	p := writeFile(t, filepath.Join(t.TempDir(), "broken.bundle"), "not a zip")
	s, err := NewArchiveStorage(p)
	require.NoError(t, err)
	assert.False(t, s.Valid())

	_, err = s.Resources("brushes")
	assert.Error(t, err)
}

func TestAdobeLibraries(t *testing.T) {
	dir := t.TempDir()
	abr := writeFile(t, filepath.Join(dir, "sketch.abr"), "8BIM brushes")
	asl := writeFile(t, filepath.Join(dir, "glow.ASL"), "8BSL styles")

	brushLib, err := NewArchiveStorage(abr)
	require.NoError(t, err)
	assert.Equal(t, AdobeBrushLibraryType, brushLib.Type())

	entries, err := brushLib.Resources("brushes")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sketch.abr", entries[0].Filename)

	none, err := brushLib.Resources("palettes")
	require.NoError(t, err)
	assert.Empty(t, none)

	res, err := brushLib.Resource("brushes/sketch.abr")
	require.NoError(t, err)
	assert.Equal(t, []byte("8BIM brushes"), res.Data)

	styleLib, err := NewArchiveStorage(asl)
	require.NoError(t, err)
	assert.Equal(t, AdobeStyleLibraryType, styleLib.Type())
	styles, err := styleLib.Resources("layerstyles")
	require.NoError(t, err)
	assert.Len(t, styles, 1)
}

func TestNewArchiveStorageRejectsUnknownExtension(t *testing.T) {
	_, err := NewArchiveStorage("/tmp/file.zip")
	assert.Error(t, err)
}
