package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gavel/internal/api/middleware"
	"gavel/internal/common/cache"
	"gavel/internal/common/db"
	"gavel/internal/common/mq"
	"gavel/internal/common/storage"
	"gavel/internal/contest/anticheat"
	"gavel/internal/judge/languages"
	"gavel/internal/judge/sandbox"
	"gavel/internal/judge/sqlbox"
	"gavel/internal/queue"
	"gavel/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLiveStatusTTL   = 30 * time.Minute
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AppConfig holds the whole service config.
type AppConfig struct {
	Server         ServerConfig             `yaml:"server"`
	Logger         logger.Config            `yaml:"logger"`
	Auth           middleware.AuthConfig    `yaml:"auth"`
	Database       db.Config                `yaml:"database"`
	Redis          cache.RedisConfig        `yaml:"redis"`
	Kafka          mq.KafkaConfig           `yaml:"kafka"`
	Minio          storage.MinioConfig      `yaml:"minio"`
	Engine         sandbox.EngineConfig     `yaml:"engine"`
	Sandbox        sandbox.Config           `yaml:"sandbox"`
	SQLProvisioner sqlbox.ProvisionerConfig `yaml:"sqlProvisioner"`
	SQLBox         sqlbox.Config            `yaml:"sqlbox"`
	Queue          queue.Config             `yaml:"queue"`
	AntiCheat      anticheat.Config         `yaml:"anticheat"`
	LiveStatusTTL  time.Duration            `yaml:"liveStatusTTL"`
	Languages      []languages.Spec         `yaml:"languages"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.LiveStatusTTL == 0 {
		cfg.LiveStatusTTL = defaultLiveStatusTTL
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = languages.Defaults()
	}
	return &cfg, nil
}
