package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	// ResourceDirectoryKey 是配置文件中覆盖资源根目录的键名。
	ResourceDirectoryKey = "ResourceDirectory"

	appDirName           = "resource-hub"
	cacheDatabaseName    = "resourcecache.sqlite"
	defaultListenPort    = 5100
	defaultWatchDebounce = 2 * time.Second
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：日志输出与诊断端口。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// ResourceConfig 决定资源根目录、安装源与缓存数据库的位置。
type ResourceConfig struct {
	ResourceDirectory     string   `mapstructure:"ResourceDirectory"`
	InstallationDirectory string   `mapstructure:"InstallationDirectory"`
	CacheDatabasePath     string   `mapstructure:"CacheDatabasePath"`
	MaxCachedResources    int      `mapstructure:"MaxCachedResources"`
	WatchDebounce         Duration `mapstructure:"WatchDebounce"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig   `mapstructure:",squash"`
	Resources ResourceConfig `mapstructure:",squash"`
}

// ResourceRoot 返回资源根目录：优先使用 ResourceDirectory，缺省时退回平台应用数据目录。
func (c *Config) ResourceRoot() (string, error) {
	if c != nil && strings.TrimSpace(c.Resources.ResourceDirectory) != "" {
		return filepath.Abs(c.Resources.ResourceDirectory)
	}
	base, err := appDataDir()
	if err != nil {
		return "", fmt.Errorf("无法定位应用数据目录: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// DatabasePath 返回缓存数据库文件路径，缺省放在用户缓存目录下，避免污染资源根目录。
func (c *Config) DatabasePath() (string, error) {
	if c != nil && strings.TrimSpace(c.Resources.CacheDatabasePath) != "" {
		return filepath.Abs(c.Resources.CacheDatabasePath)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("无法定位缓存目录: %w", err)
	}
	return filepath.Join(base, appDirName, cacheDatabaseName), nil
}

// appDataDir 对应各平台的应用数据目录（Linux 遵循 XDG_DATA_HOME）。
func appDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	switch runtime.GOOS {
	case "windows", "darwin":
		return os.UserConfigDir()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}
