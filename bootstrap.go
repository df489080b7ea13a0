package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/resource-hub/internal/cachedb"
	"github.com/any-hub/resource-hub/internal/config"
	"github.com/any-hub/resource-hub/internal/loader"
	"github.com/any-hub/resource-hub/internal/locator"
	"github.com/any-hub/resource-hub/internal/logging"
)

const defaultConfigFile = "resource-hub.toml"

// runtimeEnv 持有一次 CLI 调用期间共享的配置、日志、数据库与 Locator。
type runtimeEnv struct {
	configPath string
	cfg        *config.Config
	logger     *logrus.Logger
	root       string
	db         *cachedb.DB
	loc        *locator.Locator
}

// loadConfig 读取配置；未指定路径且当前目录没有默认文件时使用内置默认值。
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			cfg, err := config.Default()
			return cfg, "", err
		}
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// openEnv 按“配置 → 日志 → 缓存数据库 → Locator”的顺序构建运行环境。
func openEnv(ctx context.Context, configPath string) (*runtimeEnv, error) {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	root, err := cfg.ResourceRoot()
	if err != nil {
		return nil, err
	}
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}

	db, err := cachedb.Open(ctx, cachedb.Options{Path: dbPath, ResourceRoot: root})
	if err != nil {
		return nil, fmt.Errorf("打开缓存数据库失败: %w", err)
	}

	progress := logging.Component(logger, "progress")
	loc, err := locator.New(locator.Options{
		ResourceLocation:   root,
		Types:              loader.Default(),
		Database:           db,
		MaxCachedResources: cfg.Resources.MaxCachedResources,
		Logger:             logger,
		Observer: func(message string) {
			progress.Info(message)
		},
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	fields := logging.BaseFields("startup", path)
	fields["root"] = root
	fields["database"] = dbPath
	fields["max_cached_resources"] = cfg.Resources.MaxCachedResources
	logger.WithFields(fields).Debug("运行环境就绪")

	return &runtimeEnv{
		configPath: path,
		cfg:        cfg,
		logger:     logger,
		root:       root,
		db:         db,
		loc:        loc,
	}, nil
}

func (e *runtimeEnv) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.WithError(err).Warn("关闭缓存数据库失败")
	}
}

// printItemErrors 将批量操作的条目错误输出到 stderr。
func printItemErrors(errs []locator.ItemError) {
	for _, item := range errs {
		fmt.Fprintf(stdErr, "  %s\n", item.String())
	}
}
