package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/deal"
	"storefront/internal/middleware"
	"storefront/internal/queue"
	"storefront/internal/router"
	rediskey "storefront/pkg/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default from $HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.HTTPAddr = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openSQL(cfg)
	if err != nil {
		return err
	}
	repo, closeRepo, err := openDealRepo(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := newMediaStore(cfg)
	if err != nil {
		return err
	}

	// Redis 不可用时关闭限流与失败记录；开启事件时 Redis 为必需。
	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		if cfg.EventsEnabled {
			return err
		}
		log.Warn("redis unavailable, rate limit and media failure log disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var (
		recorder deal.FailureRecorder
		failures *rediskey.MediaFailureLog
		events   deal.EventPublisher
	)
	if rdb != nil {
		failures = rediskey.NewMediaFailureLog(rdb, "")
		recorder = failures
	}
	if cfg.EventsEnabled {
		events = queue.NewOutbox(rdb, cfg.DealEventStream)
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		relay := queue.NewRelay(rdb, producer, log.Named("relay"), cfg.DealEventStream, cfg.DealEventGroup, cfg.DealEventConsumer)
		go relay.Run(ctx)
	}

	recon := deal.NewReconciler(store, recorder, log.Named("reconcile"), cfg.MediaConcurrency)
	svc := deal.NewService(repo, recon, events, log.Named("deal"), deal.Options{
		MaxCreateImages: cfg.MaxCreateImages,
		CascadeDelete:   cfg.DeleteCascadeMedia,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log.Named("http")))
	router.Setup(r, router.Deps{
		Deals:    svc,
		DB:       db,
		Redis:    rdb,
		Failures: failures,
		Log:      log.Named("http"),
	}, cfg)

	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.AdminTokenHeader},
	}).Handler(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("db_driver", cfg.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
