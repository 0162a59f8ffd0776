package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"storefront/internal/media"
	rediskey "storefront/pkg/redis"
)

// 存储后端
const (
	DBSQLite = "sqlite"
	DBMongo  = "mongo"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string

	// DBDriver 为 sqlite 或 mongo；审计表和商品目录始终走 SQLite。
	DBDriver      string
	DBPath        string
	MongoURI      string
	MongoDatabase string

	RedisAddr string
	RedisDB   int

	// 活动事件：Redis Stream outbox → Kafka → 审计表
	EventsEnabled     bool
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	DealEventStream   string
	DealEventGroup    string
	DealEventConsumer string

	// 后台写接口限流
	WriteRateLimit  int
	WriteRateWindow time.Duration

	// 后台接口的简单管理员令牌
	AdminToken  string
	CORSOrigins []string

	Media            media.CloudinaryConfig
	MediaConcurrency int
	MediaRatePerSec  float64
	MediaRateBurst   int

	MaxCreateImages    int
	DeleteCascadeMedia bool

	LogLevel  string
	LogFormat string
}

// DefaultAdminToken 本地开发用的令牌，生产环境必须通过 ADMIN_TOKEN 覆盖。
const DefaultAdminToken = "dev-admin-token"

// UsesDefaultAdminToken 是否仍在使用开发令牌，启动时据此告警。
func (c AppConfig) UsesDefaultAdminToken() bool {
	return c.AdminToken == DefaultAdminToken
}

// Load 读取 .env（若存在）与环境变量并校验，缺失时使用默认值。
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DBDriver:          getEnv("DB_DRIVER", DBSQLite),
		DBPath:            getEnv("DB_PATH", "storefront.db"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "storefront"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           0,
		KafkaBrokers:      splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "storefront-deal-events"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "storefront-deal-audit"),
		DealEventStream:   getEnv("DEAL_EVENT_STREAM", rediskey.DealEventStream),
		DealEventGroup:    getEnv("DEAL_EVENT_GROUP", "storefront-relay-group"),
		DealEventConsumer: getEnv("DEAL_EVENT_CONSUMER", "storefront-relay-1"),
		WriteRateLimit:    60,
		WriteRateWindow:   time.Minute,
		AdminToken:        getEnv("ADMIN_TOKEN", DefaultAdminToken),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Media: media.CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "deals"),
		},
		MediaConcurrency: 4,
		MediaRateBurst:   5,
		MaxCreateImages:  4,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.EventsEnabled, err = getEnvBool("EVENTS_ENABLED", false); err != nil {
		return AppConfig{}, fmt.Errorf("invalid EVENTS_ENABLED: %w", err)
	}
	if cfg.DeleteCascadeMedia, err = getEnvBool("DEAL_DELETE_CASCADE_MEDIA", false); err != nil {
		return AppConfig{}, fmt.Errorf("invalid DEAL_DELETE_CASCADE_MEDIA: %w", err)
	}

	if cfg.WriteRateLimit, err = getEnvInt("WRITE_RATE_LIMIT", cfg.WriteRateLimit); err != nil {
		return AppConfig{}, fmt.Errorf("invalid WRITE_RATE_LIMIT: %w", err)
	}
	if cfg.WriteRateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("WRITE_RATE_LIMIT must be > 0")
	}
	windowSec, err := getEnvInt("WRITE_RATE_WINDOW_SEC", int(cfg.WriteRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid WRITE_RATE_WINDOW_SEC: %w", err)
	}
	if windowSec <= 0 {
		return AppConfig{}, fmt.Errorf("WRITE_RATE_WINDOW_SEC must be > 0")
	}
	cfg.WriteRateWindow = time.Duration(windowSec) * time.Second

	if cfg.MediaConcurrency, err = getEnvInt("MEDIA_CONCURRENCY", cfg.MediaConcurrency); err != nil {
		return AppConfig{}, fmt.Errorf("invalid MEDIA_CONCURRENCY: %w", err)
	}
	if cfg.MediaConcurrency <= 0 {
		return AppConfig{}, fmt.Errorf("MEDIA_CONCURRENCY must be > 0")
	}
	if cfg.MediaRatePerSec, err = getEnvFloat("MEDIA_RATE_PER_SEC", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid MEDIA_RATE_PER_SEC: %w", err)
	}
	if cfg.MediaRateBurst, err = getEnvInt("MEDIA_RATE_BURST", cfg.MediaRateBurst); err != nil {
		return AppConfig{}, fmt.Errorf("invalid MEDIA_RATE_BURST: %w", err)
	}
	if cfg.MaxCreateImages, err = getEnvInt("MAX_CREATE_IMAGES", cfg.MaxCreateImages); err != nil {
		return AppConfig{}, fmt.Errorf("invalid MAX_CREATE_IMAGES: %w", err)
	}
	if cfg.MaxCreateImages <= 0 {
		return AppConfig{}, fmt.Errorf("MAX_CREATE_IMAGES must be > 0")
	}

	switch cfg.DBDriver {
	case DBSQLite:
		if cfg.DBPath == "" {
			return AppConfig{}, fmt.Errorf("DB_PATH must not be empty")
		}
	case DBMongo:
		if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
			return AppConfig{}, fmt.Errorf("MONGO_URI and MONGO_DATABASE must not be empty")
		}
	default:
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be %s or %s, got %q", DBSQLite, DBMongo, cfg.DBDriver)
	}

	if cfg.AdminToken == "" {
		return AppConfig{}, fmt.Errorf("ADMIN_TOKEN must not be empty")
	}

	if cfg.EventsEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
		}
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
		if cfg.DealEventStream == "" || cfg.DealEventGroup == "" || cfg.DealEventConsumer == "" {
			return AppConfig{}, fmt.Errorf("DEAL_EVENT_STREAM, DEAL_EVENT_GROUP and DEAL_EVENT_CONSUMER must not be empty")
		}
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
