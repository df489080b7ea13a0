package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// Adobe 库整体作为一个资源出现在对应类型中。
const (
	adobeBrushType = "brushes"
	adobeStyleType = "layerstyles"
)

// ArchiveStorage 是单个只读归档文件：.bundle（zip + manifest）或 Adobe 的 .abr/.asl 库。
type ArchiveStorage struct {
	location string
	kind     StorageType
}

// NewArchiveStorage 按扩展名识别归档类型。
func NewArchiveStorage(location string) (*ArchiveStorage, error) {
	var kind StorageType
	switch strings.ToLower(filepath.Ext(location)) {
	case ".bundle":
		kind = BundleStorageType
	case ".abr":
		kind = AdobeBrushLibraryType
	case ".asl":
		kind = AdobeStyleLibraryType
	default:
		return nil, errors.Errorf("unsupported archive %s", location)
	}
	return &ArchiveStorage{location: filepath.Clean(location), kind: kind}, nil
}

func (s *ArchiveStorage) Location() string  { return s.location }
func (s *ArchiveStorage) Type() StorageType { return s.kind }

func (s *ArchiveStorage) Valid() bool {
	if s.kind == BundleStorageType {
		r, err := zip.OpenReader(s.location)
		if err != nil {
			return false
		}
		r.Close()
		return true
	}
	info, err := os.Stat(s.location)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (s *ArchiveStorage) Timestamp() time.Time {
	info, err := os.Stat(s.location)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (s *ArchiveStorage) Resources(resourceType string) ([]Entry, error) {
	if s.kind != BundleStorageType {
		if resourceType != s.libraryType() {
			return nil, nil
		}
		entry, err := fileEntry(resourceType, s.location)
		if err != nil {
			return nil, err
		}
		return []Entry{entry}, nil
	}

	r, items, err := s.openBundle()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files := zipIndex(r)
	var entries []Entry
	for _, item := range items {
		if item.resourceType != resourceType {
			continue
		}
		f, ok := files[item.fullPath]
		if !ok {
			continue
		}
		entry, _, err := zipEntry(item.resourceType, f, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Filename < entries[j].Filename })
	return entries, nil
}

func (s *ArchiveStorage) Resource(name string) (*Resource, error) {
	resourceType, filename := splitName(name)
	if s.kind != BundleStorageType {
		if filename != filepath.Base(s.location) || (resourceType != "" && resourceType != s.libraryType()) {
			return nil, errors.Wrapf(ErrNotFound, "%s in %s", name, s.location)
		}
		data, err := os.ReadFile(s.location)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", s.location)
		}
		info, err := os.Stat(s.location)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", s.location)
		}
		sum := md5.Sum(data)
		return &Resource{
			Entry: Entry{
				ResourceType: s.libraryType(),
				Filename:     filename,
				Size:         int64(len(data)),
				ModTime:      info.ModTime(),
				Checksum:     hex.EncodeToString(sum[:]),
			},
			Data: data,
		}, nil
	}

	r, items, err := s.openBundle()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files := zipIndex(r)
	for _, item := range items {
		if resourceType != "" && item.resourceType != resourceType {
			continue
		}
		if path.Base(item.fullPath) != filename {
			continue
		}
		f, ok := files[item.fullPath]
		if !ok {
			continue
		}
		entry, data, err := zipEntry(item.resourceType, f, true)
		if err != nil {
			return nil, err
		}
		return &Resource{Entry: entry, Data: data}, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "%s in %s", name, s.location)
}

func (s *ArchiveStorage) Tags(resourceType string) ([]Tag, error) {
	if s.kind != BundleStorageType {
		return nil, nil
	}
	r, items, err := s.openBundle()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	byName := make(map[string]*Tag)
	var order []string
	for _, item := range items {
		if item.resourceType != resourceType {
			continue
		}
		for _, name := range item.tags {
			tag, ok := byName[name]
			if !ok {
				tag = &Tag{URL: name, Name: name, ResourceType: resourceType}
				byName[name] = tag
				order = append(order, name)
			}
			tag.Resources = append(tag.Resources, path.Base(item.fullPath))
		}
	}
	sort.Strings(order)
	tags := make([]Tag, 0, len(order))
	for _, name := range order {
		tags = append(tags, *byName[name])
	}
	return tags, nil
}

func (s *ArchiveStorage) libraryType() string {
	if s.kind == AdobeStyleLibraryType {
		return adobeStyleType
	}
	return adobeBrushType
}

// openBundle 打开 zip 并解析清单；缺少清单时按 "<type>/<file>" 目录结构推断。
func (s *ArchiveStorage) openBundle() (*zip.ReadCloser, []bundleItem, error) {
	r, err := zip.OpenReader(s.location)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open bundle %s", s.location)
	}

	for _, f := range r.File {
		if f.Name != manifestPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			r.Close()
			return nil, nil, errors.Wrapf(err, "open manifest of %s", s.location)
		}
		items, err := parseManifest(rc)
		rc.Close()
		if err != nil {
			r.Close()
			return nil, nil, errors.Wrapf(err, "bundle %s", s.location)
		}
		return r, items, nil
	}

	var items []bundleItem
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dir, file := path.Split(f.Name)
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" || strings.Contains(dir, "/") || dir == "META-INF" || strings.HasPrefix(file, ".") {
			continue
		}
		items = append(items, bundleItem{resourceType: dir, fullPath: f.Name})
	}
	return r, items, nil
}

func zipIndex(r *zip.ReadCloser) map[string]*zip.File {
	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}
	return files
}

// zipEntry 计算条目的 md5；keep 为 true 时同时返回完整内容。
func zipEntry(resourceType string, f *zip.File, keep bool) (Entry, []byte, error) {
	rc, err := f.Open()
	if err != nil {
		return Entry{}, nil, errors.Wrapf(err, "open %s", f.Name)
	}
	defer rc.Close()

	h := md5.New()
	var data []byte
	if keep {
		data, err = io.ReadAll(rc)
		h.Write(data)
	} else {
		_, err = io.Copy(h, rc)
	}
	if err != nil {
		return Entry{}, nil, errors.Wrapf(err, "read %s", f.Name)
	}
	return Entry{
		ResourceType: resourceType,
		Filename:     path.Base(f.Name),
		Size:         int64(f.UncompressedSize64),
		ModTime:      f.Modified,
		Checksum:     hex.EncodeToString(h.Sum(nil)),
	}, data, nil
}
