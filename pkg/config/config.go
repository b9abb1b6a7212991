package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Server (read-only API surface)
	Port string

	// Database (durable credential/token store)
	Database DatabaseConfig

	// Redis (optional cache / cross-process limiter)
	Redis RedisConfig

	// External APIs
	KIS      KISConfig
	Gemini   GeminiConfig
	Telegram TelegramConfig
	Exim     EximConfig
	Naver    NaverConfig

	// Pipeline
	Pipeline PipelineConfig

	// Export
	Export ExportConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// KISConfig holds KIS (한국투자증권) API configuration
// 주의: 순위분석 API는 모의투자 미지원 — 실전투자 전용
type KISConfig struct {
	AppKey         string
	AppSecret      string
	AccountNo      string
	BaseURL        string
	TokenCachePath string // 로컬 토큰 캐시 파일
}

// GeminiConfig holds the theme classification service keys.
// 여러 키를 순환 사용하여 무료 티어 쿼터를 분산한다.
type GeminiConfig struct {
	APIKeys []string
	BaseURL string
}

// TelegramConfig holds push notification configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// EximConfig holds 한국수출입은행 환율 API configuration
type EximConfig struct {
	AuthKey string
	BaseURL string
}

// NaverConfig holds Naver Finance scrape configuration
type NaverConfig struct {
	BaseURL string
}

// PipelineConfig holds orchestration parameters
type PipelineConfig struct {
	Workers     int           // 병렬 워커 수 (독립 서비스 전용)
	RunTimeout  time.Duration // 전체 파이프라인 wall-clock 제한
	HistoryDays int           // 일봉 조회 일수
	CriteriaCfg string        // criteria 임계값 YAML 경로 (빈 값이면 기본값)
}

// ExportConfig holds frontend JSON export settings
type ExportConfig struct {
	OutputDir     string
	RetentionDays int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8091"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		KIS: KISConfig{
			AppKey:         getEnv("KIS_APP_KEY", ""),
			AppSecret:      getEnv("KIS_APP_SECRET", ""),
			AccountNo:      getEnv("KIS_ACCOUNT_NO", ""),
			BaseURL:        getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			TokenCachePath: getEnv("KIS_TOKEN_CACHE_PATH", ".kis_token_cache.json"),
		},

		Gemini: GeminiConfig{
			APIKeys: collectGeminiKeys(),
			BaseURL: getEnv("GEMINI_BASE_URL",
				"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"),
		},

		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_TOKEN", ""),
			ChatID:   getEnv("CHAT_ID", ""),
		},

		Exim: EximConfig{
			AuthKey: getEnv("EXIM_AUTH_KEY", ""),
			BaseURL: getEnv("EXIM_BASE_URL", "https://www.koreaexim.go.kr/site/program/financial/exchangeJSON"),
		},

		Naver: NaverConfig{
			BaseURL: getEnv("NAVER_BASE_URL", "https://finance.naver.com"),
		},

		Pipeline: PipelineConfig{
			Workers:     getEnvAsInt("PIPELINE_WORKERS", 2),
			RunTimeout:  getEnvAsDuration("PIPELINE_RUN_TIMEOUT", "25m"),
			HistoryDays: getEnvAsInt("PIPELINE_HISTORY_DAYS", 100),
			CriteriaCfg: getEnv("CRITERIA_CONFIG", ""),
		},

		Export: ExportConfig{
			OutputDir:     getEnv("EXPORT_OUTPUT_DIR", "frontend/public/data"),
			RetentionDays: getEnvAsInt("EXPORT_RETENTION_DAYS", 30),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be >= 1")
	}

	return nil
}

// collectGeminiKeys gathers GEMINI_API_KEY_01..05, skipping unset slots
func collectGeminiKeys() []string {
	keys := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		key := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%02d", i))
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
