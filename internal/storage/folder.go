package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/loader"
)

// tagsDir 是 FolderStorage 下保存 .tag 文件的目录名。
const tagsDir = "tags"

// FolderStorage 对应资源根目录：<root>/<type>/<file>。
type FolderStorage struct {
	location string
	types    loader.Types
}

// NewFolderStorage 以 location 为根构造目录存储；types 为空时不做扩展名过滤。
func NewFolderStorage(location string, types loader.Types) *FolderStorage {
	return &FolderStorage{
		location: filepath.Clean(location),
		types:    types,
	}
}

func (s *FolderStorage) Location() string  { return s.location }
func (s *FolderStorage) Type() StorageType { return FolderStorageType }

func (s *FolderStorage) Valid() bool {
	info, err := os.Stat(s.location)
	return err == nil && info.IsDir()
}

func (s *FolderStorage) Timestamp() time.Time {
	info, err := os.Stat(s.location)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (s *FolderStorage) Resources(resourceType string) ([]Entry, error) {
	dir := filepath.Join(s.location, resourceType)
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if !item.Type().IsRegular() || !s.includes(resourceType, name) {
			continue
		}
		entry, err := fileEntry(resourceType, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Filename < entries[j].Filename })
	return entries, nil
}

func (s *FolderStorage) Resource(name string) (*Resource, error) {
	resourceType, filename := splitName(name)
	if filename == "" || filename == "." || strings.HasPrefix(filename, ".") {
		return nil, errors.Wrapf(ErrNotFound, "invalid resource name %q", name)
	}

	candidates := []string{resourceType}
	if resourceType == "" {
		candidates = s.resourceTypes()
	}
	for _, candidate := range candidates {
		if candidate == "" || !s.includes(candidate, filename) {
			continue
		}
		p := filepath.Join(s.location, candidate, filename)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		sum := md5.Sum(data)
		return &Resource{
			Entry: Entry{
				ResourceType: candidate,
				Filename:     filename,
				Size:         int64(len(data)),
				ModTime:      info.ModTime(),
				Checksum:     hex.EncodeToString(sum[:]),
			},
			Data: data,
		}, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "%s in %s", name, s.location)
}

func (s *FolderStorage) Tags(resourceType string) ([]Tag, error) {
	pattern := filepath.Join(s.location, tagsDir, resourceType, "*.tag")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", pattern)
	}
	sort.Strings(files)

	tags := make([]Tag, 0, len(files))
	for _, file := range files {
		tag, err := loadTagFile(file, resourceType)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// includes 过滤隐藏文件、临时文件和归档文件（归档作为独立存储枚举）。
func (s *FolderStorage) includes(resourceType, name string) bool {
	if strings.HasPrefix(name, ".") || IsTempFile(name) || IsArchive(name) {
		return false
	}
	if s.types == nil {
		return true
	}
	return s.types.Accepts(resourceType, name)
}

func (s *FolderStorage) resourceTypes() []string {
	if s.types != nil {
		return s.types.ResourceTypes()
	}
	items, err := os.ReadDir(s.location)
	if err != nil {
		return nil
	}
	var result []string
	for _, item := range items {
		if item.IsDir() && item.Name() != tagsDir && !strings.HasPrefix(item.Name(), ".") {
			result = append(result, item.Name())
		}
	}
	return result
}

func fileEntry(resourceType, p string) (Entry, error) {
	f, err := os.Open(p)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "open %s", p)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, errors.Wrapf(err, "stat %s", p)
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return Entry{}, errors.Wrapf(err, "checksum %s", p)
	}
	return Entry{
		ResourceType: resourceType,
		Filename:     filepath.Base(p),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		Checksum:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}
