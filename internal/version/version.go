package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jujuversion "github.com/juju/version/v2"
	"github.com/pkg/errors"
)

// Version/Commit 可在构建时通过 -ldflags 注入，Version 同时决定资源目录布局版本。
var (
	Version = "5.2.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("resource-hub %s (%s)", Version, Commit)
}

var numericPrefix = regexp.MustCompile(`^(\d{1,9})(?:\.(\d{1,9}))?(?:\.(\d{1,9}))?(?:\.(\d{1,9}))?`)

// Parse 解析版本标记文件中的版本字符串。优先按 juju 版本格式（含 alpha/beta tag）解析，
// 失败时退回到前缀数字段，例如 "5.2.0-prealpha" → 5.2.0。
func Parse(raw string) (jujuversion.Number, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return jujuversion.Zero, errors.New("empty version string")
	}
	if n, err := jujuversion.Parse(trimmed); err == nil {
		return n, nil
	}

	match := numericPrefix.FindStringSubmatch(trimmed)
	if match == nil {
		return jujuversion.Zero, errors.Errorf("invalid version %q", raw)
	}
	parts := make([]int, 4)
	for i := 1; i < len(match); i++ {
		if match[i] == "" {
			continue
		}
		value, err := strconv.Atoi(match[i])
		if err != nil {
			return jujuversion.Zero, errors.Wrapf(err, "invalid version %q", raw)
		}
		parts[i-1] = value
	}
	return jujuversion.Number{
		Major: parts[0],
		Minor: parts[1],
		Patch: parts[2],
		Build: parts[3],
	}, nil
}

// Compare 比较两个版本字符串，返回 -1/0/1。
func Compare(a, b string) (int, error) {
	left, err := Parse(a)
	if err != nil {
		return 0, err
	}
	right, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return left.Compare(right), nil
}

// Newer 判断运行版本 running 是否比标记版本 marker 新，即需要执行迁移。
// 无法解析的标记一律视为旧版本。
func Newer(running, marker string) bool {
	cmp, err := Compare(running, marker)
	if err != nil {
		return true
	}
	return cmp > 0
}
