package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Backend   BackendConfig
	RateLimit RateLimitConfig
	Archive   ArchiveConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BackendConfig points at the external render/project API.
type BackendConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        int // seconds, per request
	PollIntervalMS int // batch job poll interval
	RequestsPerSec float64
}

type RateLimitConfig struct {
	BatchStartPerHour int
	RoomRenderPerHour int
}

type ArchiveConfig struct {
	Enabled   bool
	OutputDir string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("BACKEND_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	_ = viper.BindEnv("backend.api_key", "BACKEND_API_KEY")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("backend.poll_interval_ms", "BACKEND_POLL_INTERVAL_MS")
	_ = viper.BindEnv("backend.requests_per_sec", "BACKEND_REQUESTS_PER_SEC")
	_ = viper.BindEnv("ratelimit.batch_start_per_hour", "RATELIMIT_BATCH_START_PER_HOUR")
	_ = viper.BindEnv("ratelimit.room_render_per_hour", "RATELIMIT_ROOM_RENDER_PER_HOUR")
	_ = viper.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	_ = viper.BindEnv("archive.output_dir", "ARCHIVE_OUTPUT_DIR")

	// Defaults
	viper.SetDefault("server.port", "8090")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.timeout", 30)
	viper.SetDefault("backend.poll_interval_ms", 2000)
	viper.SetDefault("backend.requests_per_sec", 10)
	viper.SetDefault("ratelimit.batch_start_per_hour", 20)
	viper.SetDefault("ratelimit.room_render_per_hour", 60)
	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.output_dir", "output")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Backend: BackendConfig{
			BaseURL:        viper.GetString("backend.base_url"),
			APIKey:         viper.GetString("backend.api_key"),
			Timeout:        viper.GetInt("backend.timeout"),
			PollIntervalMS: viper.GetInt("backend.poll_interval_ms"),
			RequestsPerSec: viper.GetFloat64("backend.requests_per_sec"),
		},
		RateLimit: RateLimitConfig{
			BatchStartPerHour: viper.GetInt("ratelimit.batch_start_per_hour"),
			RoomRenderPerHour: viper.GetInt("ratelimit.room_render_per_hour"),
		},
		Archive: ArchiveConfig{
			Enabled:   viper.GetBool("archive.enabled"),
			OutputDir: viper.GetString("archive.output_dir"),
		},
	}

	return cfg, nil
}
