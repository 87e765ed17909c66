package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Verify    VerifyConfig
	Models    ModelsConfig
	Spool     SpoolConfig
	Telephony TelephonyConfig
}

type AppConfig struct {
	Env  string `env:"APP_ENV"`
	Port int    `env:"APP_PORT"`

	// StoreDriver selects the persistence backend: postgres or memory.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`

	// SSLMode is kept explicit for production posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `env:"DB_SSLMODE"`
}

// RedisConfig is optional. Without it, rendezvous waits fall back to polling the ledger.
type RedisConfig struct {
	Host string `env:"REDIS_HOST"`
	Port int    `env:"REDIS_PORT" envDefault:"6379"`

	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	JWTIssuer      string        `env:"JWT_ISSUER"`
	JWTAudience    string        `env:"JWT_AUDIENCE"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TTL"`
}

type VerifyConfig struct {
	// Deadline bounds how long a submission waits for the opponent's result.
	Deadline     time.Duration `env:"VERIFY_DEADLINE" envDefault:"15s"`
	PollInterval time.Duration `env:"VERIFY_POLL_INTERVAL" envDefault:"500ms"`

	Workers   int `env:"VERIFY_WORKERS" envDefault:"4"`
	QueueSize int `env:"VERIFY_QUEUE_SIZE" envDefault:"64"`

	// GlobalConcurrency caps in-flight analyses across all replicas (requires Redis). 0 disables.
	GlobalConcurrency int `env:"VERIFY_GLOBAL_CONCURRENCY" envDefault:"0"`

	SpeakerThreshold float64 `env:"SPEAKER_THRESHOLD" envDefault:"0.7"`
	EmbeddingDim     int     `env:"EMBEDDING_DIM" envDefault:"192"`
}

type ModelsConfig struct {
	DetectorURL       string        `env:"DETECTOR_URL"`
	ExtractorURL      string        `env:"EXTRACTOR_URL"`
	DetectorThreshold float64       `env:"DETECTOR_THRESHOLD" envDefault:"0.5"`
	Timeout           time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`
}

// SpoolConfig selects where submitted audio is parked while it waits for analysis.
// S3 is used when Bucket is set, otherwise the local Dir.
type SpoolConfig struct {
	Dir string `env:"SPOOL_DIR" envDefault:"user_voices"`

	S3Bucket    string `env:"SPOOL_S3_BUCKET"`
	S3Prefix    string `env:"SPOOL_S3_PREFIX"`
	S3Region    string `env:"SPOOL_S3_REGION"`
	S3Endpoint  string `env:"SPOOL_S3_ENDPOINT"`
	S3AccessKey string `env:"SPOOL_S3_ACCESS_KEY"`
	S3SecretKey string `env:"SPOOL_S3_SECRET_KEY"`
}

type TelephonyConfig struct {
	// WebhookSecret, when set, must be presented in X-Webhook-Secret by status reporters.
	WebhookSecret string `env:"TELEPHONY_WEBHOOK_SECRET"`

	// TwilioAuthToken enables X-Twilio-Signature validation on status callbacks.
	TwilioAuthToken string `env:"TWILIO_AUTH_TOKEN"`
	// PublicBaseURL is the externally visible scheme+host Twilio signs against.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

func Load() (Config, error) {
	c := Config{}
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	c.App.Env = strings.TrimSpace(c.App.Env)
	c.App.StoreDriver = strings.TrimSpace(c.App.StoreDriver)
	c.DB.Host = strings.TrimSpace(c.DB.Host)
	c.DB.SSLMode = strings.TrimSpace(c.DB.SSLMode)
	c.Redis.Host = strings.TrimSpace(c.Redis.Host)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.App.StoreDriver {
	case "postgres":
		errs = append(errs, c.validateDB()...)
	case "memory":
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be one of postgres, memory, got %q", c.App.StoreDriver))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Redis.DB))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Verify.Deadline <= 0 {
		errs = append(errs, errors.New("VERIFY_DEADLINE must be positive"))
	}
	if c.Verify.PollInterval <= 0 || c.Verify.PollInterval > c.Verify.Deadline {
		errs = append(errs, errors.New("VERIFY_POLL_INTERVAL must be positive and not exceed VERIFY_DEADLINE"))
	}
	if c.Verify.Workers <= 0 {
		errs = append(errs, fmt.Errorf("VERIFY_WORKERS must be > 0, got %d", c.Verify.Workers))
	}
	if c.Verify.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("VERIFY_QUEUE_SIZE must be >= 1, got %d", c.Verify.QueueSize))
	}
	if c.Verify.GlobalConcurrency > 0 && c.Redis.Host == "" {
		errs = append(errs, errors.New("VERIFY_GLOBAL_CONCURRENCY requires REDIS_HOST"))
	}
	if c.Verify.SpeakerThreshold <= 0 || c.Verify.SpeakerThreshold > 2 {
		errs = append(errs, fmt.Errorf("SPEAKER_THRESHOLD must be in (0, 2], got %v", c.Verify.SpeakerThreshold))
	}
	if c.Verify.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIM must be > 0, got %d", c.Verify.EmbeddingDim))
	}

	if c.Models.DetectorURL == "" {
		errs = append(errs, errors.New("DETECTOR_URL is required"))
	}
	if c.Models.ExtractorURL == "" {
		errs = append(errs, errors.New("EXTRACTOR_URL is required"))
	}
	if c.Models.DetectorThreshold < 0 || c.Models.DetectorThreshold > 1 {
		errs = append(errs, fmt.Errorf("DETECTOR_THRESHOLD must be in [0, 1], got %v", c.Models.DetectorThreshold))
	}

	if c.Spool.S3Bucket == "" && strings.TrimSpace(c.Spool.Dir) == "" {
		errs = append(errs, errors.New("SPOOL_DIR or SPOOL_S3_BUCKET is required"))
	}
	if c.Spool.S3Bucket != "" && c.Spool.S3Region == "" {
		errs = append(errs, errors.New("SPOOL_S3_REGION is required with SPOOL_S3_BUCKET"))
	}

	if c.IsProduction() && c.Telephony.WebhookSecret == "" {
		errs = append(errs, errors.New("TELEPHONY_WEBHOOK_SECRET is required in production"))
	}
	if c.Telephony.TwilioAuthToken != "" && c.Telephony.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required with TWILIO_AUTH_TOKEN"))
	}

	return joinErrors(errs)
}

func (c Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

// applyDefaults fills values that are optional outside production.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Participants keep a token for the length of a working session.
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
