package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/any-hub/resource-hub/internal/cachedb"
	"github.com/any-hub/resource-hub/internal/config"
	"github.com/any-hub/resource-hub/internal/logging"
	"github.com/any-hub/resource-hub/internal/server"
	"github.com/any-hub/resource-hub/internal/server/routes"
	"github.com/any-hub/resource-hub/internal/watcher"
)

func newCheckConfigCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "仅校验配置后退出",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			logger, err := logging.InitLogger(cfg.Global)
			if err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			root, err := cfg.ResourceRoot()
			if err != nil {
				return err
			}
			dbPath, err := cfg.DatabasePath()
			if err != nil {
				return err
			}

			fields := logging.BaseFields("check_config", path)
			fields[config.ResourceDirectoryKey] = root
			fields["database"] = dbPath
			fields["result"] = "ok"
			logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func newInitCommand(opts *cliOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "检测资源目录状态，必要时安装/迁移，否则同步缓存数据库",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnv(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if source == "" {
				source = env.cfg.Resources.InstallationDirectory
			}
			err = env.loc.Initialize(ctx, source)
			fmt.Fprintf(stdOut, "%s\t%s\n", env.loc.DetectedStatus(), env.root)
			if err != nil {
				printItemErrors(env.loc.ErrorMessages())
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "内置资源目录（默认取配置 InstallationDirectory）")
	return cmd
}

func newSyncCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "重新扫描存储并与缓存数据库对账",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.loc.SynchronizeDb(cmd.Context()); err != nil {
				printItemErrors(env.loc.ErrorMessages())
				return err
			}
			fmt.Fprintf(stdOut, "synchronized %d storage(s)\n", len(env.loc.Storages()))
			return nil
		},
	}
}

func newStoragesCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "storages",
		Short: "列出缓存数据库中登记的存储",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			rows, err := env.db.Storages(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(stdOut, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tACTIVE\tLOCATION")
			for _, row := range rows {
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", row.ID, row.TypeName, row.Active, row.Location)
			}
			return w.Flush()
		},
	}
}

func newResourcesCommand(opts *cliOptions) *cobra.Command {
	var (
		resourceType string
		all          bool
	)
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "列出缓存数据库中的资源记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnv(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			records, err := env.db.Resources(cmd.Context(), cachedb.Filter{
				ResourceType:    resourceType,
				IncludeInactive: all,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(stdOut, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tFILENAME\tVERSION\tACTIVE\tSTORAGE")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%t\t%s\n", r.ID, r.ResourceType, r.Filename, r.Version, r.Active, r.StorageLocation)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&resourceType, "type", "", "仅列出指定类型")
	cmd.Flags().BoolVar(&all, "all", false, "包含已停用的记录")
	return cmd
}

func newRemoveCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "从缓存数据库删除资源记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("无效的资源 ID: %s", args[0])
			}
			env, err := openEnv(cmd.Context(), opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.loc.RemoveResource(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(stdOut, "removed %d\n", id)
			return nil
		},
	}
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "初始化资源目录后启动诊断服务与目录监听",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := openEnv(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if source == "" {
				source = env.cfg.Resources.InstallationDirectory
			}
			if err := env.loc.Initialize(ctx, source); err != nil {
				printItemErrors(env.loc.ErrorMessages())
				return err
			}
			return serve(ctx, env)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "内置资源目录（默认取配置 InstallationDirectory）")
	return cmd
}

// serve 启动目录监听与 Fiber 诊断服务，直到 ctx 结束。
func serve(ctx context.Context, env *runtimeEnv) error {
	logger := env.logger
	w, err := watcher.New(env.root, env.cfg.Resources.WatchDebounce.DurationValue(), logger, func() {
		if err := env.loc.SynchronizeDb(ctx); err != nil {
			logger.WithError(err).WithField("errors", len(env.loc.ErrorMessages())).Warn("同步失败")
		}
	})
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			logger.WithError(err).Warn("目录监听退出")
		}
	}()

	port := env.cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{Logger: logger, ListenPort: port}, func(app *fiber.App) {
		routes.RegisterDiagnosticsRoutes(app, env.loc, env.db, logger)
	})
	if err != nil {
		return err
	}

	fields := logging.BaseFields("listen", env.configPath)
	fields["port"] = port
	fields["root"] = env.root
	logger.WithFields(fields).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(fmt.Sprintf(":%d", port)) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.WithField("action", "shutdown").Info("收到退出信号")
		return app.ShutdownWithContext(shutdownCtx)
	}
}
