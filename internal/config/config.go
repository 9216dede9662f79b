package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/NewsShow/internal/logger"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv 可选 YAML 配置文件路径；环境变量优先级高于文件
const ConfigFileEnv = "NEWSSHOW_CONFIG"

type Config struct {
	AppPort string `yaml:"app_port"`

	// 关键词为空时使用的兜底关键词
	FallbackKeyword string        `yaml:"fallback_keyword"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
	UserAgent       string        `yaml:"user_agent"`

	// 为空表示不启用对应组件
	RedisAddr    string        `yaml:"redis_addr"`
	FeedCacheTTL time.Duration `yaml:"feed_cache_ttl"`
	PostgresDSN  string        `yaml:"postgres_dsn"`

	CronSpec string `yaml:"cron_spec"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

func defaults() *Config {
	return &Config{
		AppPort:         "5000",
		FallbackKeyword: "Mumbai",
		FetchTimeout:    10 * time.Second,
		UserAgent:       "NewsShowBot/1.0",
		FeedCacheTTL:    2 * time.Minute,
		CronSpec:        "*/10 * * * *",
		RateLimitRPS:    2,
		RateLimitBurst:  5,
		LogLevel:        "info",
	}
}

// Load 依次应用：默认值 -> 可选 YAML 文件 -> 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if strings.TrimSpace(cfg.FallbackKeyword) == "" {
		return nil, fmt.Errorf("config: fallback keyword must not be empty")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("config: fetch timeout must be positive, got %s", cfg.FetchTimeout)
	}

	logger.Infof("config loaded: port=%s fallback=%q redis=%t history=%t cron=%s",
		cfg.AppPort, cfg.FallbackKeyword, cfg.RedisAddr != "", cfg.PostgresDSN != "", cfg.CronSpec)
	return cfg, nil
}

// loadFile 读取 YAML，支持 ${VAR} 形式的环境变量展开
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := os.Expand(string(data), os.Getenv)
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// 兼容常见 PaaS 注入的 PORT
	cfg.AppPort = getEnv("APP_PORT", getEnv("PORT", cfg.AppPort))
	cfg.FallbackKeyword = getEnv("FALLBACK_KEYWORD", cfg.FallbackKeyword)
	cfg.FetchTimeout = getDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.FeedCacheTTL = getDuration("FEED_CACHE_TTL", cfg.FeedCacheTTL)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.CronSpec = getEnv("CRON_SPEC", cfg.CronSpec)
	cfg.RateLimitRPS = getFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warnf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warnf("config: invalid %s=%q, using %g", key, v, def)
		return def
	}
	return f
}
