package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/logging"
)

var (
	cfg config.AppConfig
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront deal admin service",
	Long:  "HTTP back office for promotional deals, with image gallery reconciliation and an audited event trail.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		// flag 覆盖环境变量
		if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
			cfg.DBDriver = v
		}
		if v, _ := cmd.Flags().GetString("log-level"); v != "" {
			cfg.LogLevel = v
		}
		log, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		if cfg.UsesDefaultAdminToken() {
			log.Warn("ADMIN_TOKEN not set, admin API is using the development token")
		}
		configureJSON()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// configureJSON 进程级 JSON 设置：金额字段以数字输出，前端无需再做 parseFloat。
func configureJSON() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Execute 运行根命令。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("db-driver", "", "Deal storage: sqlite or mongo (default from $DB_DRIVER)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default from $LOG_LEVEL)")
}
