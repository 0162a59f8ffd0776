package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/queue"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward deal events from the Redis Stream outbox to Kafka",
	RunE:  runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	log.Info("relay started",
		zap.String("stream", cfg.DealEventStream),
		zap.String("group", cfg.DealEventGroup),
		zap.String("topic", cfg.KafkaTopic))
	queue.NewRelay(rdb, producer, log.Named("relay"), cfg.DealEventStream, cfg.DealEventGroup, cfg.DealEventConsumer).Run(ctx)
	return nil
}
