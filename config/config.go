package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"lod-checker/internal/domain/entity"
)

// Config настройки всех бинарников
type Config struct {
	Gemini   GeminiConfig
	Telegram TelegramConfig
	HTTP     HTTPConfig
	App      AppConfig
}

// GeminiConfig подключение к сервису анализа
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration // 0: без таймаута
}

// TelegramConfig настройки бота
type TelegramConfig struct {
	Token string
}

// HTTPConfig настройки HTTP API
type HTTPConfig struct {
	Addr string
}

// AppConfig общие настройки
type AppConfig struct {
	LogLevel      string
	DefaultLOD    entity.LODLevel
	MaxImageBytes int
	SessionTTL    time.Duration // 0: сессии не удаляются
}

const (
	DefaultModel         = "gemini-3-flash-preview"
	DefaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultMaxImageBytes = 20 << 20
	DefaultSessionTTL    = time.Hour
)

// Load читает .env (если есть), окружение и необязательный YAML из CONFIG_FILE
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("gemini_model", DefaultModel)
	v.SetDefault("gemini_base_url", DefaultBaseURL)
	v.SetDefault("gemini_timeout", "0s")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("default_lod", string(entity.DefaultLOD))
	v.SetDefault("max_image_bytes", DefaultMaxImageBytes)
	v.SetDefault("session_ttl", DefaultSessionTTL.String())

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	apiKey := v.GetString("gemini_api_key")
	if apiKey == "" {
		apiKey = v.GetString("api_key")
	}

	lod, err := entity.ParseLODLevel(v.GetString("default_lod"))
	if err != nil {
		return nil, fmt.Errorf("default_lod: %w", err)
	}

	cfg := &Config{
		Gemini: GeminiConfig{
			APIKey:  apiKey,
			Model:   v.GetString("gemini_model"),
			BaseURL: strings.TrimRight(v.GetString("gemini_base_url"), "/"),
			Timeout: v.GetDuration("gemini_timeout"),
		},
		Telegram: TelegramConfig{
			Token: v.GetString("telegram_token"),
		},
		HTTP: HTTPConfig{
			Addr: v.GetString("http_addr"),
		},
		App: AppConfig{
			LogLevel:      strings.ToLower(v.GetString("log_level")),
			DefaultLOD:    lod,
			MaxImageBytes: v.GetInt("max_image_bytes"),
			SessionTTL:    v.GetDuration("session_ttl"),
		},
	}

	if cfg.App.MaxImageBytes <= 0 {
		cfg.App.MaxImageBytes = DefaultMaxImageBytes
	}

	return cfg, nil
}

// ValidateGemini проверяет, что ключ API задан
func (c *Config) ValidateGemini() error {
	if c.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required")
	}
	if c.Gemini.Model == "" {
		return errors.New("GEMINI_MODEL is required")
	}
	return nil
}

// ValidateTelegram проверяет настройки бота
func (c *Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return c.ValidateGemini()
}
