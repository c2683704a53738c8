package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"babycare-backend/internal/common/config"
	"babycare-backend/internal/stats"

	"gopkg.in/yaml.v3"
)

// Config babycare 服务配置（api / ingest / stats 共用）
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string
		// 实时事件流保活间隔
		StreamKeepAlive time.Duration
	}

	Ingest struct {
		// MQTT 订阅主题，形如 babycare/{device_id}/events
		Topic        string
		Stream       string // 事件流名称
		StreamMaxLen int64
		// 已落库事件的广播流，API 实例据此推送实时事件
		LiveStream       string
		LiveStreamMaxLen int64
		ConsumerGroup    string
		ConsumerName     string
		BatchSize        int64
		BlockTimeout     time.Duration
		// 未 ACK 消息的重试间隔
		PendingInterval time.Duration
		// 其他消费者的 pending 消息闲置超过该值后被接管
		ClaimMinIdle time.Duration
	}

	Push struct {
		Enabled     bool
		BaseURL     string
		AccessToken string
	}

	Cache struct {
		// 进程内事件列表缓存
		MemoTTL         time.Duration
		CleanupInterval time.Duration
		MaxEntries      int
		// Redis 快照缓存
		SnapshotTTL time.Duration
	}

	Worker struct {
		Interval time.Duration
	}

	// Metrics ingest / stats 进程单独暴露 /metrics 的地址，为空则不启动
	Metrics struct {
		Addr string
	}

	// Stats 统计参数，可由 STATS_CONFIG_FILE 覆盖
	Stats           stats.Params
	StatsConfigFile string
	Timezone        string

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "babycare"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MaxIdle = 5
	cfg.Database.ApplicationName = getEnv("SERVICE_NAME", "babycare")
	cfg.Database.ConnectTimeout = 5 * time.Second
	cfg.Database.LoadFromEnv("DB")
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")
	if err := cfg.Redis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = getEnv("SERVICE_NAME", "babycare") + "-" + hostname()
	cfg.MQTT.QoS = 1
	cfg.MQTT.KeepAlive = 30 * time.Second
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.StreamKeepAlive = getEnvDuration("HTTP_STREAM_KEEPALIVE", 25*time.Second)

	cfg.Ingest.Topic = getEnv("INGEST_TOPIC", "babycare/+/events")
	cfg.Ingest.Stream = getEnv("INGEST_STREAM", "babycare:events")
	cfg.Ingest.StreamMaxLen = int64(getEnvInt("INGEST_STREAM_MAXLEN", 100000))
	cfg.Ingest.LiveStream = getEnv("INGEST_LIVE_STREAM", "babycare:events:live")
	cfg.Ingest.LiveStreamMaxLen = int64(getEnvInt("INGEST_LIVE_STREAM_MAXLEN", 10000))
	cfg.Ingest.ConsumerGroup = getEnv("INGEST_CONSUMER_GROUP", "babycare-ingest-group")
	cfg.Ingest.ConsumerName = getEnv("INGEST_CONSUMER_NAME", "babycare-ingest-1")
	cfg.Ingest.BatchSize = int64(getEnvInt("INGEST_BATCH_SIZE", 10))
	cfg.Ingest.BlockTimeout = getEnvDuration("INGEST_BLOCK_TIMEOUT", 2*time.Second)
	cfg.Ingest.PendingInterval = getEnvDuration("INGEST_PENDING_INTERVAL", 30*time.Second)
	cfg.Ingest.ClaimMinIdle = getEnvDuration("INGEST_CLAIM_MIN_IDLE", time.Minute)

	cfg.Push.Enabled = getEnv("PUSH_ENABLED", "true") == "true"
	cfg.Push.BaseURL = getEnv("PUSH_BASE_URL", "https://exp.host")
	cfg.Push.AccessToken = getEnv("PUSH_ACCESS_TOKEN", "")

	cfg.Cache.MemoTTL = getEnvDuration("CACHE_MEMO_TTL", 30*time.Second)
	cfg.Cache.CleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute)
	cfg.Cache.MaxEntries = getEnvInt("CACHE_MAX_ENTRIES", 1000)
	cfg.Cache.SnapshotTTL = getEnvDuration("CACHE_SNAPSHOT_TTL", 60*time.Second)

	cfg.Worker.Interval = getEnvDuration("STATS_INTERVAL", 30*time.Second)
	cfg.Metrics.Addr = os.Getenv("METRICS_ADDR")

	cfg.Stats = stats.DefaultParams()
	cfg.StatsConfigFile = getEnv("STATS_CONFIG_FILE", "")
	if cfg.StatsConfigFile != "" {
		if err := loadStatsFile(cfg.StatsConfigFile, &cfg.Stats); err != nil {
			return nil, err
		}
	}

	cfg.Timezone = getEnv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Stats.Location = loc
	cfg.Stats = cfg.Stats.Normalize()

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// loadStatsFile 用 YAML 文件覆盖统计参数，文件中未出现的键保持原值
func loadStatsFile(path string, p *stats.Params) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stats config: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to parse stats config: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// 兼容纯数字（秒）
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return defaultValue
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}
