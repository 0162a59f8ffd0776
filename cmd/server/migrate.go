package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables (SQLite) and indexes (MongoDB) without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSQL(cfg)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err == nil {
			defer sqlDB.Close()
		}
		_, closeRepo, err := openDealRepo(context.Background(), cfg, db)
		if err != nil {
			return err
		}
		closeRepo()
		log.Info("migration done", zap.String("db_driver", cfg.DBDriver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
