package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/any-hub/resource-hub/internal/loader/builtin"
)

// configEnvVar 在未传 --config 时指定配置文件路径。
const configEnvVar = "RESOURCE_HUB_CONFIG"

// cliOptions 汇总全局标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试。
func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stdErr, "错误: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	var configFlag string

	root := &cobra.Command{
		Use:           "resource-hub",
		Short:         "Locate, install and synchronize creative resources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.configPath = resolveConfigPath(configFlag)
		},
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "配置文件路径（默认 ./resource-hub.toml，可被 "+configEnvVar+" 覆盖）")

	root.AddCommand(
		newVersionCommand(),
		newCheckConfigCommand(opts),
		newInitCommand(opts),
		newSyncCommand(opts),
		newStoragesCommand(opts),
		newResourcesCommand(opts),
		newRemoveCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// resolveConfigPath 结合 flag 与环境变量计算配置路径；flag 优先。空串表示使用默认查找。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(configEnvVar)
}
