package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverLevelDB  = "leveldb"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	LevelDBPath string `mapstructure:"LEVELDB_PATH"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// FastAPIPredictURL backs the save-and-predict and upload pipelines;
	// PredictURL backs the standalone /predict endpoint.
	FastAPIPredictURL string `mapstructure:"FASTAPI_PREDICT_URL"`
	PredictURL        string `mapstructure:"PREDICT_URL"`

	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`

	WebhookUploadURL    string `mapstructure:"WEBHOOK_UPLOAD_URL"`
	WebhookRiskAlertURL string `mapstructure:"WEBHOOK_RISK_ALERT_URL"`
	WebhookParseURL     string `mapstructure:"WEBHOOK_PARSE_URL"`
	WebhookSecret       string `mapstructure:"WEBHOOK_SECRET"`

	KafkaBrokers         []string `mapstructure:"KAFKA_BROKERS"`
	KafkaAssessmentTopic string   `mapstructure:"KAFKA_ASSESSMENT_TOPIC"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit   string   `mapstructure:"BODY_LIMIT"`
	UploadLimit string   `mapstructure:"UPLOAD_LIMIT"`
	OCRLanguage string   `mapstructure:"OCR_LANGUAGE"`

	// RateLimitRPS throttles the predictor and model backed endpoints per
	// caregiver. Zero disables the limiter.
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	LLMTimeout      time.Duration `mapstructure:"LLM_TIMEOUT"`
	WebhookTimeout  time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "LEVELDB_PATH",
	"JWT_SECRET", "TOKEN_TTL",
	"FASTAPI_PREDICT_URL", "PREDICT_URL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"WEBHOOK_UPLOAD_URL", "WEBHOOK_RISK_ALERT_URL", "WEBHOOK_PARSE_URL", "WEBHOOK_SECRET",
	"KAFKA_BROKERS", "KAFKA_ASSESSMENT_TOPIC",
	"CORS_ORIGINS", "BODY_LIMIT", "UPLOAD_LIMIT", "OCR_LANGUAGE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "UPSTREAM_TIMEOUT", "LLM_TIMEOUT", "WEBHOOK_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "9000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_TTL", "120h")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("KAFKA_ASSESSMENT_TOPIC", "pregnancy-assessments")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "20M")
	v.SetDefault("OCR_LANGUAGE", "eng")
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("REQUEST_TIMEOUT", "2m")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("LLM_TIMEOUT", "60s")
	v.SetDefault("WEBHOOK_TIMEOUT", "15s")

	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.PredictURL == "" {
		cfg.PredictURL = cfg.FastAPIPredictURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development); error responses include details.")
	}

	return cfg, nil
}

// splitList normalizes comma separated env values. Viper hands back a single
// element slice when the variable comes from the environment.
func splitList(current []string, raw string) []string {
	if len(current) > 0 {
		raw = strings.Join(current, ",")
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	case DriverLevelDB:
		if c.LevelDBPath == "" {
			return fmt.Errorf("LEVELDB_PATH is required when STORE_DRIVER is %q", DriverLevelDB)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverLevelDB, c.StoreDriver)
	}

	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":  c.RequestTimeout,
		"UPSTREAM_TIMEOUT": c.UpstreamTimeout,
		"LLM_TIMEOUT":      c.LLMTimeout,
		"WEBHOOK_TIMEOUT":  c.WebhookTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}
