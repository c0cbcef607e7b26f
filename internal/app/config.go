package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/utils"
)

type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	HTTPAddr       string
	JWTSecretKey   string
	UserTokenTTL   time.Duration
	RedisAddr      string
	RedisChannel   string
	AllowedOrigins []string
}

// fileConfig mirrors the optional CONFIG_FILE yaml document. Environment
// variables win over file values so deployments can override a baked image.
type fileConfig struct {
	ServiceName    string   `yaml:"service_name"`
	Environment    string   `yaml:"environment"`
	Version        string   `yaml:"version"`
	HTTPAddr       string   `yaml:"http_addr"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisChannel   string   `yaml:"redis_channel"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	UserTokenTTL   int      `yaml:"user_token_ttl_seconds"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	userTTLSeconds := fc.UserTokenTTL
	if userTTLSeconds <= 0 {
		userTTLSeconds = 3600
	}
	userTTLSeconds = utils.GetEnvAsInt("USER_TOKEN_TTL", userTTLSeconds, log)

	cfg := Config{
		ServiceName:    utils.GetEnv("SERVICE_NAME", fallback(fc.ServiceName, "dispenser-backend"), log),
		Environment:    utils.GetEnv("ENVIRONMENT", fallback(fc.Environment, "development"), log),
		Version:        utils.GetEnv("SERVICE_VERSION", fallback(fc.Version, "dev"), log),
		HTTPAddr:       utils.GetEnv("HTTP_ADDR", fallback(fc.HTTPAddr, ":8080"), log),
		JWTSecretKey:   utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		UserTokenTTL:   time.Duration(userTTLSeconds) * time.Second,
		RedisAddr:      utils.GetEnv("REDIS_ADDR", fc.RedisAddr, log),
		RedisChannel:   utils.GetEnv("REDIS_CHANNEL", fallback(fc.RedisChannel, "job_events"), log),
		AllowedOrigins: fc.AllowedOrigins,
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}
	return cfg, nil
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
