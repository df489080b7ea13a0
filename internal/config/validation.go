package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别 "+g.LogLevel)
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	r := c.Resources
	if r.MaxCachedResources < 0 {
		return newFieldError("Resources.MaxCachedResources", "不能为负数，0 表示不限制")
	}
	if r.WatchDebounce.DurationValue() < 0 {
		return newFieldError("Resources.WatchDebounce", "不能为负数")
	}
	if err := validateDirectory("Resources."+ResourceDirectoryKey, r.ResourceDirectory); err != nil {
		return err
	}
	if err := validateDirectory("Resources.InstallationDirectory", r.InstallationDirectory); err != nil {
		return err
	}
	if r.ResourceDirectory != "" && r.InstallationDirectory != "" &&
		filepath.Clean(r.ResourceDirectory) == filepath.Clean(r.InstallationDirectory) {
		return newFieldError("Resources.InstallationDirectory", "不能与 ResourceDirectory 相同")
	}
	if db := strings.TrimSpace(r.CacheDatabasePath); db != "" && strings.HasSuffix(db, string(filepath.Separator)) {
		return newFieldError("Resources.CacheDatabasePath", "必须是文件路径")
	}

	return nil
}

func validateDirectory(field, raw string) error {
	if raw == "" {
		return nil
	}
	if strings.TrimSpace(raw) != raw {
		return newFieldError(field, "不允许首尾空白")
	}
	if strings.ContainsRune(raw, 0) {
		return newFieldError(field, "包含非法字符")
	}
	return nil
}
