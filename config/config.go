package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Remote      RemoteConfig      `yaml:"remote"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Replication ReplicationConfig `yaml:"replication"`
	Trash       TrashConfig       `yaml:"trash"`
	Pagination  PaginationConfig  `yaml:"pagination"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	SQLitePath   string `yaml:"sqlite_path"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	LogQueries   bool   `yaml:"log_queries"`
}

// StorageConfig describes the local (fast) tier.
type StorageConfig struct {
	BasePath      string `yaml:"base_path"`
	MaxFileSize   int64  `yaml:"max_file_size"`
	ArchivePrefix string `yaml:"archive_prefix"`
}

// RemoteConfig describes the durable S3-compatible tier.
type RemoteConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
	// LocalMirrorPath backs the remote tier with a directory when Enabled is false.
	LocalMirrorPath string `yaml:"local_mirror_path"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	ShareTopic string   `yaml:"share_topic"`
}

type ReplicationConfig struct {
	Queue          string `yaml:"queue"`
	QueueKey       string `yaml:"queue_key"`
	WorkerCount    int    `yaml:"worker_count"`
	RetryMax       int    `yaml:"retry_max"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
	SweepInterval  int    `yaml:"sweep_interval"`
	StaleAfter     int    `yaml:"stale_after"`
	// MetricsAddr is where the standalone worker exposes /metrics.
	MetricsAddr string `yaml:"metrics_addr"`
}

type TrashConfig struct {
	PurgeEnabled    bool `yaml:"purge_enabled"`
	RetentionDays   int  `yaml:"retention_days"`
	CleanupInterval int  `yaml:"cleanup_interval"`
}

type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Charset == "" {
		cfg.Database.Charset = "utf8mb4"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "gdrive.db"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./data/local"
	}
	if cfg.Storage.ArchivePrefix == "" {
		cfg.Storage.ArchivePrefix = "archives"
	}
	if cfg.Remote.Bucket == "" {
		cfg.Remote.Bucket = "files"
	}
	if cfg.Remote.LocalMirrorPath == "" {
		cfg.Remote.LocalMirrorPath = "./data/remote"
	}
	if cfg.Kafka.ShareTopic == "" {
		cfg.Kafka.ShareTopic = "files.shared"
	}
	if cfg.Replication.Queue == "" {
		cfg.Replication.Queue = "redis"
	}
	if cfg.Replication.QueueKey == "" {
		cfg.Replication.QueueKey = "replication:queue"
	}
	if cfg.Replication.WorkerCount <= 0 {
		cfg.Replication.WorkerCount = 4
	}
	if cfg.Replication.RetryMax <= 0 {
		cfg.Replication.RetryMax = 3
	}
	if cfg.Replication.RetryBackoffMs <= 0 {
		cfg.Replication.RetryBackoffMs = 500
	}
	if cfg.Replication.SweepInterval <= 0 {
		cfg.Replication.SweepInterval = 600
	}
	if cfg.Replication.StaleAfter <= 0 {
		cfg.Replication.StaleAfter = 900
	}
	if cfg.Replication.MetricsAddr == "" {
		cfg.Replication.MetricsAddr = ":9091"
	}
	if cfg.Trash.RetentionDays <= 0 {
		cfg.Trash.RetentionDays = 30
	}
	if cfg.Trash.CleanupInterval <= 0 {
		cfg.Trash.CleanupInterval = 86400
	}
	if cfg.Pagination.DefaultPageSize <= 0 {
		cfg.Pagination.DefaultPageSize = 10
	}
	if cfg.Pagination.MaxPageSize <= 0 {
		cfg.Pagination.MaxPageSize = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// applyEnvOverrides lets deployments keep secrets out of config.yaml.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Database.Host, "GDRIVE_DB_HOST")
	setString(&cfg.Database.Username, "GDRIVE_DB_USER")
	setString(&cfg.Database.Password, "GDRIVE_DB_PASSWORD")
	setString(&cfg.Database.Database, "GDRIVE_DB_NAME")
	setString(&cfg.Redis.Password, "GDRIVE_REDIS_PASSWORD")
	setString(&cfg.Remote.Endpoint, "GDRIVE_REMOTE_ENDPOINT")
	setString(&cfg.Remote.AccessKey, "GDRIVE_REMOTE_ACCESS_KEY")
	setString(&cfg.Remote.SecretKey, "GDRIVE_REMOTE_SECRET_KEY")
	setString(&cfg.Log.Level, "GDRIVE_LOG_LEVEL")
	if v, ok := os.LookupEnv("GDRIVE_KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("GDRIVE_SERVER_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
