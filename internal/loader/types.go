package loader

import (
	"path/filepath"
	"strings"
)

// ResourceType 记录一种资源类型的静态信息，供目录布局与枚举过滤使用。
type ResourceType struct {
	Key         string
	Description string
	// Extensions 为空表示接受该类型目录下的任意文件。
	Extensions []string
	MimeTypes  []string
}

// Types 是存储后端与 Locator 依赖的只读视图。
type Types interface {
	// ResourceTypes 返回按键排序的资源类型名称。
	ResourceTypes() []string
	// Accepts 判断 filename 是否属于 resourceType。
	Accepts(resourceType, filename string) bool
}

func (t ResourceType) accepts(filename string) bool {
	if len(t.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, candidate := range t.Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
