package storage

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/loader"
)

// StorageType 区分存储后端的物理形态。
type StorageType int

const (
	UnknownStorage StorageType = iota
	FolderStorageType
	BundleStorageType
	AdobeBrushLibraryType
	AdobeStyleLibraryType
)

func (t StorageType) String() string {
	switch t {
	case FolderStorageType:
		return "folder"
	case BundleStorageType:
		return "bundle"
	case AdobeBrushLibraryType:
		return "adobe_brush_library"
	case AdobeStyleLibraryType:
		return "adobe_style_library"
	default:
		return "unknown"
	}
}

// ParseStorageType 是 String 的逆操作，供缓存数据库读取记录时使用。
func ParseStorageType(raw string) StorageType {
	switch raw {
	case "folder":
		return FolderStorageType
	case "bundle":
		return BundleStorageType
	case "adobe_brush_library":
		return AdobeBrushLibraryType
	case "adobe_style_library":
		return AdobeStyleLibraryType
	default:
		return UnknownStorage
	}
}

// ArchiveExtensions 列出会被识别为独立存储的归档文件扩展名。
var ArchiveExtensions = []string{".bundle", ".abr", ".asl"}

// ErrNotFound 表示存储中不存在请求的资源。
var ErrNotFound = errors.New("resource not found in storage")

// Entry 描述存储中的一个资源文件。Filename 不含类型目录前缀。
type Entry struct {
	ResourceType string
	Filename     string
	Size         int64
	ModTime      time.Time
	Checksum     string
}

// Name 返回去掉扩展名的资源名，用作默认显示名。
func (e Entry) Name() string {
	return strings.TrimSuffix(e.Filename, path.Ext(e.Filename))
}

// Resource 是一次 fetch 的结果：元数据 + 完整字节。
type Resource struct {
	Entry
	Data []byte
}

// Tag 描述一个标签及其关联的资源文件名。
type Tag struct {
	URL          string
	Name         string
	Comment      string
	ResourceType string
	Resources    []string
}

// Storage 是所有存储后端共享的枚举 + fetch 契约。
type Storage interface {
	// Location 返回绝对、规整后的路径，作为存储的唯一标识。
	Location() string
	Type() StorageType
	// Valid 报告存储当前是否可读。
	Valid() bool
	// Timestamp 返回存储本身的修改时间。
	Timestamp() time.Time
	// Resources 枚举指定类型的所有资源，按文件名排序。
	Resources(resourceType string) ([]Entry, error)
	// Resource 按名称读取资源；name 可以是 "<type>/<file>" 或仅文件名。
	Resource(name string) (*Resource, error)
	// Tags 返回指定类型下声明的标签。
	Tags(resourceType string) ([]Tag, error)
}

// New 根据路径类型构造存储：目录 → FolderStorage，归档文件 → ArchiveStorage。
func New(location string, types loader.Types) (Storage, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve storage location %s", location)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "stat storage location %s", abs)
	}
	if info.IsDir() {
		return NewFolderStorage(abs, types), nil
	}
	if !IsArchive(abs) {
		return nil, errors.Errorf("unsupported storage file %s", abs)
	}
	return NewArchiveStorage(abs)
}

// IsArchive 判断文件名是否带有归档扩展名（大小写不敏感）。
func IsArchive(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range ArchiveExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// FindArchives 递归查找 root 下的所有归档文件，返回排序后的绝对路径。
// 无法读取的子目录会被跳过，并在 skipped 中返回。
func FindArchives(root string) (archives []string, skipped []string, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "resolve %s", root)
	}
	walkErr := filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			skipped = append(skipped, p)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && IsArchive(d.Name()) {
			archives = append(archives, p)
		}
		return nil
	})
	if walkErr != nil {
		return nil, skipped, errors.Wrapf(walkErr, "walk %s", abs)
	}
	sort.Strings(archives)
	return archives, skipped, nil
}

// splitName 将 "<type>/<file>" 拆分为类型和文件名；无前缀时 resourceType 为空。
func splitName(name string) (resourceType, filename string) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	clean = strings.TrimPrefix(clean, "/")
	dir, file := path.Split(clean)
	return strings.TrimSuffix(dir, "/"), file
}
