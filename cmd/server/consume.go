package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume deal events from Kafka into the audit table",
	RunE:  runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openSQL(cfg)
	if err != nil {
		return err
	}

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, db, log.Named("consumer"))
	defer consumer.Close()

	log.Info("consumer started", zap.String("topic", cfg.KafkaTopic), zap.String("group", cfg.KafkaGroupID))
	consumer.Run(ctx)
	return nil
}
