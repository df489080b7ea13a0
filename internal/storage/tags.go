package storage

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const tagSection = "Desktop Entry"

// loadTagFile 解析 desktop-entry 格式的 .tag 文件：
//
//	[Desktop Entry]
//	Type=Tag
//	URL=favorites
//	Name=Favorites
//	Comment=My favorite brushes
//	Resources=a.gbr;b.gbr
func loadTagFile(path, resourceType string) (Tag, error) {
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return Tag{}, errors.Wrapf(err, "parse tag file %s", path)
	}
	section, err := file.GetSection(tagSection)
	if err != nil {
		return Tag{}, errors.Wrapf(err, "tag file %s", path)
	}

	url := strings.TrimSpace(section.Key("URL").String())
	if url == "" {
		url = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Tag{
		URL:          url,
		Name:         strings.TrimSpace(section.Key("Name").MustString(url)),
		Comment:      strings.TrimSpace(section.Key("Comment").String()),
		ResourceType: resourceType,
		Resources:    splitList(section.Key("Resources").String()),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
