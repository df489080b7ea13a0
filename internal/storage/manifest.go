package storage

import (
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// manifestPath 是 bundle 内记录资源类型与标签的清单文件。
const manifestPath = "META-INF/manifest.xml"

type manifest struct {
	XMLName xml.Name        `xml:"manifest"`
	Entries []manifestEntry `xml:"file-entry"`
}

type manifestEntry struct {
	MediaType string   `xml:"media-type,attr"`
	FullPath  string   `xml:"full-path,attr"`
	MD5       string   `xml:"md5sum,attr"`
	Tags      []string `xml:"tags>tag"`
}

// bundleItem 是清单里一个资源文件的规整表示。
type bundleItem struct {
	resourceType string
	fullPath     string
	tags         []string
}

func parseManifest(r io.Reader) ([]bundleItem, error) {
	var m manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode bundle manifest")
	}
	items := make([]bundleItem, 0, len(m.Entries))
	for _, e := range m.Entries {
		full := strings.TrimPrefix(path.Clean("/"+e.FullPath), "/")
		// "/" 条目描述 bundle 本身。
		if full == "" || e.MediaType == "" || strings.Contains(e.MediaType, "/") {
			continue
		}
		tags := make([]string, 0, len(e.Tags))
		for _, tag := range e.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		items = append(items, bundleItem{
			resourceType: e.MediaType,
			fullPath:     full,
			tags:         tags,
		})
	}
	return items, nil
}
