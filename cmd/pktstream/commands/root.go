package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/livp123/pktstream/internal/config"
	"github.com/livp123/pktstream/internal/utils/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfgManager = config.NewConfigManager("")
)

var RootCmd = &cobra.Command{
	Use:   "pktstream",
	Short: "Live packet capture streaming server",
	// Short: 实时抓包流式服务
	Long: `pktstream runs an external packet capture tool, tails the records it writes
and streams every record plus running address/protocol counts to live viewers.
pktstream 调用外部抓包程序，追踪其输出记录，并将每条记录与实时统计推送给观察端。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load configuration to get logging settings
		// 加载配置以获取日志设置
		cfgManager = config.NewConfigManager(configPath)
		err := cfgManager.LoadConfig()
		if err != nil {
			// Fall back to defaults (console only)
			// 加载失败时使用默认配置（仅控制台）
			logger.Init(config.Default().Logging)
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Get(nil).Warnf("[WARN] Ignoring configuration %s: %v", cfgManager.GetConfigPath(), err)
			}
		} else {
			logger.Init(cfgManager.GetConfig().Logging)
		}

		// Inject logger into context
		// 将 Logger 注入 Context
		ctx := logger.WithContext(cmd.Context(), logger.Get(nil))
		cmd.SetContext(ctx)
	},
}

func init() {
	// Config file path
	// 配置文件路径
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", fmt.Sprintf("Path to configuration file (default: %s)", config.DefaultConfigPath))

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(testCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(completionCmd)

	// Disable powershell completion
	// 禁用 powershell 补全
	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell autocompletion script",
	Long: `Generate shell autocompletion script for pktstream.
生成 pktstream 的 shell 自动补全脚本。

Examples:
  pktstream completion bash > /etc/bash_completion.d/pktstream
  pktstream completion zsh  > "${fpath[1]}/_pktstream"
  pktstream completion fish > ~/.config/fish/completions/pktstream.fish`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return RootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return RootCmd.GenZshCompletion(out)
		case "fish":
			return RootCmd.GenFishCompletion(out, true)
		default:
			return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", args[0])
		}
	},
}

// Execute runs the root command and exits non-zero on error.
// Execute 执行根命令，出错时以非零状态退出。
func Execute() {
	defer logger.Sync()
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
