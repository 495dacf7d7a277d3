// =============================================================================
// AgentCore 命令行入口
// =============================================================================
// 使用方法:
//
//	agentcore demo                          # 运行示例案例
//	agentcore demo --config agentcore.yaml  # 指定配置文件
//	agentcore score --coherence 0.9 ...     # 对显式分量评分
//	agentcore version                       # 显示版本信息
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// app 命令之间共享的运行时状态
type app struct {
	configPath string
	envFile    string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "agentcore",
		Short:         "Synchronous task execution with recovery, skills and scoring",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newDemoCmd(a),
		newScoreCmd(a),
		newVersionCmd(),
	)
	return root
}

// init 读取 .env、加载并验证配置、构建 logger
func (a *app) init() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.NewLoader().
		WithConfigPath(a.configPath).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = initLogger(cfg.Log)
	return nil
}
