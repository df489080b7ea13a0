package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/resource-hub/internal/loader"
)

func testTypes() *loader.Registry {
	return loader.NewRegistry(
		loader.ResourceType{Key: "brushes", Extensions: []string{".gbr", ".gih"}},
		loader.ResourceType{Key: "paintoppresets", Extensions: []string{".kpp"}},
		loader.ResourceType{Key: "palettes"},
	)
}

func writeFile(t *testing.T, p, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// writeBundle 生成 zip bundle；manifest 为空时不写入清单。
func writeBundle(t *testing.T, p string, files map[string]string, manifest string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	if manifest != "" {
		mw, err := w.Create(manifestPath)
		require.NoError(t, err)
		_, err = mw.Write([]byte(manifest))
		require.NoError(t, err)
	}
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return p
}

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:media-type="application/x-krita-resourcebundle" manifest:full-path="/"/>
 <manifest:file-entry manifest:media-type="brushes" manifest:full-path="brushes/tip.gbr">
  <manifest:tags>
   <manifest:tag>Favorites</manifest:tag>
   <manifest:tag>Ink</manifest:tag>
  </manifest:tags>
 </manifest:file-entry>
 <manifest:file-entry manifest:media-type="paintoppresets" manifest:full-path="paintoppresets/pencil.kpp">
  <manifest:tags>
   <manifest:tag>Favorites</manifest:tag>
  </manifest:tags>
 </manifest:file-entry>
</manifest:manifest>`
