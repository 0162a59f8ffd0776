package main

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/deal"
	"storefront/internal/media"
	"storefront/internal/model"
	"storefront/internal/repository"
)

// openSQL 连接 SQLite，自动建表。商品目录和审计表始终在这里。
func openSQL(cfg config.AppConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.AutoMigrate(&model.Deal{}, &model.Product{}, &model.DealEvent{}); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

// openDealRepo 按 DB_DRIVER 选择活动存储。返回的 closer 在退出时调用。
func openDealRepo(ctx context.Context, cfg config.AppConfig, db *gorm.DB) (deal.Repository, func(), error) {
	if cfg.DBDriver != config.DBMongo {
		return repository.NewDealRepo(db), func() {}, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	repo := repository.NewMongoDealRepo(client.Database(cfg.MongoDatabase))
	if err := repo.Migrate(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	closer := func() { _ = client.Disconnect(context.Background()) }
	return repo, closer, nil
}

func openRedis(ctx context.Context, cfg config.AppConfig) (*rd.Client, error) {
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func newMediaStore(cfg config.AppConfig) (media.Store, error) {
	cld, err := media.NewCloudinary(cfg.Media)
	if err != nil {
		return nil, err
	}
	return media.NewRateLimited(cld, cfg.MediaRatePerSec, cfg.MediaRateBurst), nil
}
