package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"finishflow/shared/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config содержит конфигурацию сервиса FinishFlow.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// HTTP
	ServerPort         string `envconfig:"SERVER_PORT" default:"10000"`
	MaxBodyBytes       int64  `envconfig:"MAX_BODY_BYTES" default:"52428800"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	PublicBaseURL      string `envconfig:"PUBLIC_BASE_URL" default:""`
	RateLimitPerMinute uint   `envconfig:"RATE_LIMIT_PER_MINUTE" default:"10"`

	// Генерация сценария
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.4"`
	ScriptTimeout time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"120s"`
	// Секрет, без envconfig тега
	AIAPIKey string `ignored:"true"`

	// Озвучка
	TTSModel           string        `envconfig:"TTS_MODEL" default:"gpt-4o-mini-tts"`
	TTSVoice           string        `envconfig:"TTS_VOICE" default:"alloy"`
	TTSSpeed           float64       `envconfig:"TTS_SPEED" default:"0.97"`
	TTSTimeout         time.Duration `envconfig:"TTS_TIMEOUT" default:"120s"`
	TTSFallbackEnabled bool          `envconfig:"TTS_FALLBACK_ENABLED" default:"false"`

	// Фоновая музыка (AudioFlow)
	MusicEnabled       bool          `envconfig:"MUSIC_ENABLED" default:"true"`
	AudioFlowEngineURL string        `envconfig:"AUDIOFLOW_ENGINE_URL" default:"https://audioflow-live.onrender.com"`
	AudioFlowTimeout   time.Duration `envconfig:"AUDIOFLOW_TIMEOUT" default:"120s"`

	// ffmpeg / ffprobe
	FFmpegBin        string        `envconfig:"FFMPEG_BIN" default:"ffmpeg"`
	FFprobeBin       string        `envconfig:"FFPROBE_BIN" default:"ffprobe"`
	RenderTimeout    time.Duration `envconfig:"RENDER_TIMEOUT" default:"240s"`
	RenderMixTimeout time.Duration `envconfig:"RENDER_MIX_TIMEOUT" default:"300s"`
	ProbeTimeout     time.Duration `envconfig:"PROBE_TIMEOUT" default:"60s"`
	ScratchDir       string        `envconfig:"SCRATCH_DIR" default:""`
	PresetsFile      string        `envconfig:"PRESETS_FILE" default:""`

	// Пороги проверки
	MinNarrationBytes   int64   `envconfig:"MIN_NARRATION_BYTES" default:"1024"`
	MinNarrationSeconds float64 `envconfig:"MIN_NARRATION_SECONDS" default:"3"`
	MinVideoBytes       int64   `envconfig:"MIN_VIDEO_BYTES" default:"32768"`
	MinVideoSeconds     float64 `envconfig:"MIN_VIDEO_SECONDS" default:"2.5"`

	// Токены скачивания
	DownloadTokenTTL  time.Duration `envconfig:"DOWNLOAD_TOKEN_TTL" default:"30m"`
	DownloadSingleUse bool          `envconfig:"DOWNLOAD_SINGLE_USE" default:"false"`

	// Redis (опционально, для rate limit)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `ignored:"true"`

	// PostgreSQL (опционально, журнал запусков)
	DBHost        string        `envconfig:"DB_HOST" default:""`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"finishflow"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"5"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBPassword    string        `ignored:"true"`

	// RabbitMQ (опционально, событие о готовом видео)
	RabbitMQURL      string `envconfig:"RABBITMQ_URL" default:""`
	VideoEventsQueue string `envconfig:"VIDEO_EVENTS_QUEUE" default:"finishflow_video_ready"`
}

// JournalEnabled - включен ли журнал запусков в PostgreSQL.
func (c *Config) JournalEnabled() bool { return c.DBHost != "" }

// NotifierEnabled - включены ли события в RabbitMQ.
func (c *Config) NotifierEnabled() bool { return c.RabbitMQURL != "" }

// GetDSN возвращает строку подключения к PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins разбирает CORS_ALLOWED_ORIGINS.
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.AIClientType) {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown AI_CLIENT_TYPE %q", c.AIClientType))
	}
	if c.DownloadTokenTTL <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_TOKEN_TTL must be positive"))
	}
	if c.MinVideoSeconds <= 0 {
		errs = append(errs, errors.New("MIN_VIDEO_SECONDS must be positive"))
	}
	if c.MinNarrationSeconds <= 0 {
		errs = append(errs, errors.New("MIN_NARRATION_SECONDS must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"SCRIPT_TIMEOUT":     c.ScriptTimeout,
		"TTS_TIMEOUT":        c.TTSTimeout,
		"AUDIOFLOW_TIMEOUT":  c.AudioFlowTimeout,
		"RENDER_TIMEOUT":     c.RenderTimeout,
		"RENDER_MIX_TIMEOUT": c.RenderMixTimeout,
		"PROBE_TIMEOUT":      c.ProbeTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig загружает .env (если есть), переменные окружения и секреты.
func LoadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ошибка загрузки %s: %w", envPath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	var loadErr error
	// Ollama ключ не требует
	if strings.ToLower(cfg.AIClientType) == "openai" {
		cfg.AIAPIKey, loadErr = utils.ReadSecretOrEnv("openai_api_key", "OPENAI_API_KEY")
		if loadErr != nil {
			return nil, loadErr
		}
	} else {
		cfg.AIAPIKey, _ = utils.ReadSecretOrEnv("openai_api_key", "OPENAI_API_KEY")
	}

	if cfg.JournalEnabled() {
		cfg.DBPassword, loadErr = utils.ReadSecretOrEnv("db_password", "DB_PASSWORD")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if cfg.RedisAddr != "" {
		cfg.RedisPassword, _ = utils.ReadSecretOrEnv("redis_password", "REDIS_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}

	return &cfg, nil
}

// LogFields - поля для логирования конфигурации без секретов.
func (c *Config) LogFields() []zap.Field {
	fields := []zap.Field{
		zap.String("env", c.Env),
		zap.String("port", c.ServerPort),
		zap.String("ai_client", c.AIClientType),
		zap.String("ai_base_url", c.AIBaseURL),
		zap.String("ai_model", c.AIModel),
		zap.String("ai_api_key", utils.MaskSecret(c.AIAPIKey)),
		zap.String("tts_model", c.TTSModel),
		zap.String("tts_voice", c.TTSVoice),
		zap.Bool("tts_fallback", c.TTSFallbackEnabled),
		zap.Bool("music_enabled", c.MusicEnabled),
		zap.String("audioflow_url", c.AudioFlowEngineURL),
		zap.String("scratch_dir", c.ScratchDir),
		zap.Duration("token_ttl", c.DownloadTokenTTL),
		zap.Bool("single_use_tokens", c.DownloadSingleUse),
		zap.Bool("journal", c.JournalEnabled()),
		zap.Bool("notifier", c.NotifierEnabled()),
	}
	if c.JournalEnabled() {
		fields = append(fields, zap.String("db_dsn", c.getMaskedDSN()))
	}
	if c.RedisAddr != "" {
		fields = append(fields, zap.String("redis_addr", c.RedisAddr))
	}
	return fields
}

// getMaskedDSN возвращает DSN с замаскированным паролем.
func (c *Config) getMaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 2 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}
