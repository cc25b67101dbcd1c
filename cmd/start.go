package cmd

import (
	"fmt"
	"os"

	"github.com/nerdneilsfield/telegram-style-bot/internal/bot"
	"github.com/nerdneilsfield/telegram-style-bot/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "./config.toml"

func newStartCmd(version string, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:          "start [config]",
		Short:        "Start the bot (long polling, or webhook when webhook.url is set)",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := defaultConfigPath
			if len(args) == 1 {
				configFile = args[0]
			}
			return run(configFile, version, buildTime)
		},
	}
}

// loadConfig reads the file, applies environment overrides and defaults, then validates.
// A missing file is allowed when BOT_TOKEN carries everything needed.
func loadConfig(configFile string, logger *zap.Logger) (*config.Config, error) {
	cfg := &config.Config{}
	if _, statErr := os.Stat(configFile); statErr == nil {
		logger.Info("使用配置文件", zap.String("path", configFile))
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
		cfg = loaded
	} else {
		logger.Warn("配置文件不存在, 仅使用环境变量", zap.String("path", configFile))
	}

	config.ApplyEnv(cfg)
	if verbose {
		cfg.LogConfig.Level = "debug"
	}
	config.ApplyDefaults(cfg)

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

func run(configFile string, version string, buildTime string) error {
	// 先初始化一个基本日志记录器，用于记录配置加载过程
	tempLogger, _ := zap.NewProduction()
	defer tempLogger.Sync()

	cfg, err := loadConfig(configFile, tempLogger)
	if err != nil {
		tempLogger.Error("启动失败", zap.Error(err))
		return err
	}
	config.PrintConfig(os.Stdout, cfg)

	return bot.StartBot(cfg, version, buildTime)
}
