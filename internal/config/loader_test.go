package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFailsWithInvalidFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "invalid.toml")); err == nil {
		t.Fatalf("非法字段的配置应返回错误")
	}
}

func TestLoadFailsWhenFileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("配置文件不存在时应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
ResourceDirectory = "./resources"
WatchDebounce = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsSecondsDuration(t *testing.T) {
	path := writeTempConfig(t, `WatchDebounce = 5`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Resources.WatchDebounce.DurationValue() != 5*time.Second {
		t.Fatalf("纯数字应按秒解析，得到 %s", cfg.Resources.WatchDebounce.DurationValue())
	}
}
