package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Поддерживаемые провайдеры внешних моделей
const (
	VoiceProviderXTTS    = "xtts"
	VoiceProviderAllTalk = "alltalk"

	VideoProviderSadTalker = "sadtalker"
	VideoProviderFFmpeg    = "ffmpeg"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	App       AppConfig
	Workspace WorkspaceConfig
	Voice     VoiceConfig
	Video     VideoConfig
	Whisper   WhisperConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Retention RetentionConfig
}

type AppConfig struct {
	Env         string
	LogLevel    string
	Port        int
	MaxUploadMB int
}

// WorkspaceConfig содержит пути рабочих директорий
type WorkspaceConfig struct {
	InputDir  string
	OutputDir string
}

// VoiceConfig содержит настройки сервиса клонирования голоса
type VoiceConfig struct {
	Provider       string
	BaseURL        string
	Language       string
	TimeoutSeconds int
	// AllTalk читает голоса только из своей директории voices
	AllTalkVoicesDir string
}

// VideoConfig содержит настройки генератора говорящей головы
type VideoConfig struct {
	Provider       string
	BaseURL        string
	TimeoutSeconds int
	Preprocess     string
	StillMode      bool
	Enhancer       string
	FFmpegPath     string
	FFprobePath    string
}

// WhisperConfig содержит настройки Whisper API.
// Пустой APIURL отключает транскрибацию образца голоса.
type WhisperConfig struct {
	APIURL string
}

type DatabaseConfig struct {
	Enabled       bool
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationPath string
}

// TelegramConfig содержит настройки Telegram бота. Пустой токен отключает бота.
type TelegramConfig struct {
	BotToken string
}

// RetentionConfig управляет очисткой истории генераций
type RetentionConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 7860)
	cfg.App.MaxUploadMB = getEnvIntDefault("MAX_UPLOAD_MB", 50)

	// Workspace
	cfg.Workspace.InputDir = getEnvDefault("INPUT_DIR", "input")
	cfg.Workspace.OutputDir = getEnvDefault("OUTPUT_DIR", "output")

	// Voice
	cfg.Voice.Provider = getEnvDefault("VOICE_PROVIDER", VoiceProviderXTTS)
	cfg.Voice.BaseURL = getEnvDefault("VOICE_API_URL", "http://xtts:8020")
	cfg.Voice.Language = getEnvDefault("VOICE_LANGUAGE", "en")
	cfg.Voice.TimeoutSeconds = getEnvIntDefault("VOICE_TIMEOUT_SECONDS", 300)
	cfg.Voice.AllTalkVoicesDir = getEnvDefault("ALLTALK_VOICES_DIR", "alltalk/voices")

	// Video
	cfg.Video.Provider = getEnvDefault("VIDEO_PROVIDER", VideoProviderSadTalker)
	cfg.Video.BaseURL = getEnvDefault("VIDEO_API_URL", "http://sadtalker:8000")
	cfg.Video.TimeoutSeconds = getEnvIntDefault("VIDEO_TIMEOUT_SECONDS", 900)
	cfg.Video.Preprocess = getEnvDefault("VIDEO_PREPROCESS", "crop")
	cfg.Video.StillMode = getEnvBoolDefault("VIDEO_STILL_MODE", false)
	cfg.Video.Enhancer = os.Getenv("VIDEO_ENHANCER")
	cfg.Video.FFmpegPath = getEnvDefault("FFMPEG_PATH", "ffmpeg")
	cfg.Video.FFprobePath = getEnvDefault("FFPROBE_PATH", "ffprobe")

	// Whisper
	cfg.Whisper.APIURL = os.Getenv("WHISPER_API_URL")

	// Database
	cfg.Database.Enabled = getEnvBoolDefault("DB_ENABLED", false)
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")
	cfg.Database.MigrationPath = getEnvDefault("MIGRATION_PATH", "scripts/migrations")

	// Telegram
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	// Retention
	cfg.Retention.Interval = time.Duration(getEnvIntDefault("RETENTION_INTERVAL_HOURS", 6)) * time.Hour
	cfg.Retention.MaxAge = time.Duration(getEnvIntDefault("RETENTION_MAX_AGE_HOURS", 24*30)) * time.Hour

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.App.Port <= 0 || config.App.Port > 65535 {
		return fmt.Errorf("некорректный APP_PORT: %d", config.App.Port)
	}
	if config.App.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB должен быть положительным")
	}
	if config.Workspace.InputDir == "" || config.Workspace.OutputDir == "" {
		return fmt.Errorf("INPUT_DIR и OUTPUT_DIR не могут быть пустыми")
	}

	switch config.Voice.Provider {
	case VoiceProviderXTTS, VoiceProviderAllTalk:
	default:
		return fmt.Errorf("поддерживаются только VOICE_PROVIDER: %s, %s", VoiceProviderXTTS, VoiceProviderAllTalk)
	}
	if config.Voice.BaseURL == "" {
		return fmt.Errorf("VOICE_API_URL не установлен")
	}

	switch config.Video.Provider {
	case VideoProviderSadTalker:
		if config.Video.BaseURL == "" {
			return fmt.Errorf("VIDEO_API_URL не установлен")
		}
	case VideoProviderFFmpeg:
	default:
		return fmt.Errorf("поддерживаются только VIDEO_PROVIDER: %s, %s", VideoProviderSadTalker, VideoProviderFFmpeg)
	}

	if config.Retention.Interval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL_HOURS должен быть положительным")
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("DB_HOST не установлен")
		}
		if config.Database.User == "" {
			return fmt.Errorf("DB_USER не установлен")
		}
		if config.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD не установлен")
		}
		if config.Database.Name == "" {
			return fmt.Errorf("DB_NAME не установлен")
		}
	}

	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetURL возвращает строку подключения в формате URL (для goose и lib/pq)
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// MaxUploadBytes возвращает лимит размера формы в байтах
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
