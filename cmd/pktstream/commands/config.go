package commands

import (
	"fmt"

	"github.com/livp123/pktstream/internal/capture"
	"github.com/livp123/pktstream/internal/config"
	"github.com/spf13/cobra"
)

// initCmd 实现 'init' 命令
// initCmd implements the 'init' command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	// Short: 初始化配置
	Long: `Write the default configuration file`,
	// Long: 写入默认配置文件
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		written, err := cfgManager.WriteTemplate(force)
		if err != nil {
			return err
		}
		if !written {
			fmt.Fprintf(cmd.OutOrStdout(), "ℹ️  Configuration already exists at %s (use --force to overwrite)\n", cfgManager.GetConfigPath())
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration initialized at %s\n", cfgManager.GetConfigPath())
		return nil
	},
}

// testCmd 实现 'test' 命令
// testCmd implements the 'test' command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test configuration",
	// Short: 测试配置
	Long: `Load and validate the configuration file, including the record filter`,
	// Long: 加载并验证配置文件（包括记录过滤表达式）
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgManager.GetConfigPath())
		if err != nil {
			return err
		}
		if _, err := capture.NewFilter(cfg.Capture.Filter); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration test passed: %s\n", cfgManager.GetConfigPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
}
