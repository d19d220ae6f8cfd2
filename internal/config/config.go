package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	Host string
	Port string

	// Database
	DatabaseURL      string
	DBConnectTimeout time.Duration
	DBQueryTimeout   time.Duration
	DBMaxOpenConns   int
	DBConnectRetries int
	DBRetryBaseDelay time.Duration
	DBRetryFactor    float64

	// JWT
	JWTSecret        string
	JWTExpiresIn     time.Duration
	JWTRefreshExpiry time.Duration

	// Password
	BcryptRounds int

	// Rate Limit
	RateLimitWindow      time.Duration
	RateLimitMaxRequests int
	AuthRateLimitMax     int

	// CORS
	CORSOrigins []string

	// Logging
	LogLevel slog.Level

	// Revocation
	RedisURL string

	// Shipments
	ShipmentsAdminOnly bool
}

// 作業係数の許容範囲
const (
	MinBcryptRounds = 10
	MaxBcryptRounds = 15
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。不正な値は最初の1件をエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	var err error
	cfg.Host = getEnvString("HOST", "0.0.0.0")
	cfg.Port = getEnvString("PORT", "3000")

	if cfg.DBConnectTimeout, err = getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBQueryTimeout, err = getEnvDuration("DB_QUERY_TIMEOUT", 45*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.DBConnectRetries, err = getEnvInt("DB_CONNECT_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.DBRetryBaseDelay, err = getEnvDuration("DB_RETRY_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.DBRetryFactor, err = getEnvFloat("DB_RETRY_FACTOR", 2); err != nil {
		return nil, err
	}

	if cfg.JWTExpiresIn, err = getEnvDuration("JWT_EXPIRES_IN", time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshExpiry, err = getEnvDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.BcryptRounds, err = getEnvInt("BCRYPT_ROUNDS", 12); err != nil {
		return nil, err
	}
	if cfg.BcryptRounds < MinBcryptRounds || cfg.BcryptRounds > MaxBcryptRounds {
		return nil, fmt.Errorf("BCRYPT_ROUNDS must be between %d and %d, got %d", MinBcryptRounds, MaxBcryptRounds, cfg.BcryptRounds)
	}

	windowMS, err := getEnvInt("RATE_LIMIT_WINDOW_MS", 900000)
	if err != nil {
		return nil, err
	}
	if windowMS <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW_MS must be positive, got %d", windowMS)
	}
	cfg.RateLimitWindow = time.Duration(windowMS) * time.Millisecond
	if cfg.RateLimitMaxRequests, err = getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimitMax, err = getEnvInt("AUTH_RATE_LIMIT_MAX_REQUESTS", 10); err != nil {
		return nil, err
	}

	cfg.CORSOrigins = splitList(getEnvString("CORS_ORIGINS", "http://localhost:3000"))

	if cfg.LogLevel, err = ParseLogLevel(getEnvString("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	cfg.RedisURL = getEnvString("REDIS_URL", "")

	if cfg.ShipmentsAdminOnly, err = getEnvBool("SHIPMENTS_ADMIN_ONLY", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr はHTTPサーバーのリッスンアドレスを返す。
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// ParseDuration は "30s" "15m" "1h" "7d" 形式の期間文字列を解析する。
// 単位のない整数は秒として扱う。
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid duration unit in %q (want s, m, h or d)", s)
}

// ParseLogLevel はLOG_LEVELの値をslog.Levelに変換する。
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
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", s)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
