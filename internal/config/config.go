package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend は商品コレクションの永続化先を表す。
type StoreBackend string

const (
	// BackendFile はDATA_DIR配下のJSONファイルに保存する。
	BackendFile StoreBackend = "file"
	// BackendMemory はプロセス内メモリに保存する。再起動で消える。
	BackendMemory StoreBackend = "memory"
	// BackendPostgres はPostgreSQLのpreferencesテーブルに保存する。
	BackendPostgres StoreBackend = "postgres"
	// BackendRedis はRedisのSETに保存する。
	BackendRedis StoreBackend = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend   StoreBackend
	DataDir        string
	DatabaseURL    string
	RedisURL       string
	StoreNamespace string

	// Expiry
	Location      *time.Location
	DateCacheSize int

	// Rate Limit (req/min/クライアント)
	RateLimitWrite int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// バックエンドに必要な環境変数が未設定の場合や、選択肢にない値が指定された場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	backend, err := parseBackend(getEnvString("STORE_BACKEND", string(BackendFile)))
	if err != nil {
		return nil, err
	}
	cfg.StoreBackend = backend

	// Required fields (バックエンド依存)
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if backend == BackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if backend == BackendRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	loc, err := time.LoadLocation(getEnvString("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	level, err := ParseLogLevel(getEnvString("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	// Optional fields with defaults
	cfg.DataDir = getEnvString("DATA_DIR", "./data")
	cfg.StoreNamespace = getEnvString("STORE_NAMESPACE", "shelflife")
	cfg.DateCacheSize = getEnvInt("DATE_CACHE_SIZE", 512)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.DateCacheSize <= 0 {
		return nil, fmt.Errorf("DATE_CACHE_SIZE must be positive, got %d", cfg.DateCacheSize)
	}
	if cfg.RateLimitWrite <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WRITE must be positive, got %d", cfg.RateLimitWrite)
	}

	return cfg, nil
}

// ParseLogLevel はLOG_LEVELの文字列をslog.Levelに変換する。
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: must be one of debug, info, warn, error", s)
	}
}

func parseBackend(s string) (StoreBackend, error) {
	switch b := StoreBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendFile, BackendMemory, BackendPostgres, BackendRedis:
		return b, nil
	default:
		return "", fmt.Errorf("invalid STORE_BACKEND %q: must be one of file, memory, postgres, redis", s)
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
