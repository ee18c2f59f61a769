package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Port    string `env:"PORT" validate:"required,numeric"`
	GinMode string `env:"GIN_MODE" validate:"oneof=debug release test"`
	DataDir string `env:"DATA_DIR" validate:"required"`
	Version string `env:"APP_VERSION" validate:"required"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" validate:"gte=1"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" validate:"gte=0"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" validate:"gte=0"`
}

// PerceptionConfig points at the pose estimator and object detector services
type PerceptionConfig struct {
	PoseEstimatorURL  string        `env:"POSE_ESTIMATOR_URL" validate:"omitempty,url"`
	ObjectDetectorURL string        `env:"OBJECT_DETECTOR_URL" validate:"omitempty,url"`
	APIKey            string        `env:"PERCEPTION_API_KEY"`
	Timeout           time.Duration `env:"PERCEPTION_TIMEOUT" validate:"gt=0"`
	DetectorInputSize int           `env:"DETECTOR_INPUT_SIZE" validate:"gte=32,lte=4096"`
}

// RedisConfig holds the optional Redis connection used by rate limiting
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" validate:"gte=0,lte=15"`
}

// RateLimitConfig holds per-minute request limits
type RateLimitConfig struct {
	PerMinute        int `env:"RATE_LIMIT_PER_MIN" validate:"gt=0"`
	AnalyzePerMinute int `env:"ANALYZE_LIMIT_PER_MIN" validate:"gte=0"`
}

// AuthConfig holds archer token settings
type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET" validate:"min=16"`
	TokenTTL        time.Duration `env:"JWT_TTL" validate:"gt=0"`
	IssuerKey       string        `env:"TOKEN_ISSUER_KEY"`
	EphemeralSecret bool          `env:"-"`
}

// SecurityConfig holds request hygiene settings
type SecurityConfig struct {
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" validate:"dive,required"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" validate:"gt=0"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0"`
	EnableHSTS     bool          `env:"ENABLE_HSTS"`
}

// Config is the complete service configuration
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	Perception  PerceptionConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Auth        AuthConfig
	Security    SecurityConfig
	CacheTTL    time.Duration          `env:"CACHE_TTL" validate:"gte=0"`
	ScoringFile string                 `env:"SCORING_CONFIG"`
	TargetFile  string                 `env:"TARGET_CONFIG"`
	Scoring     analysis.ScoringParams `env:"-"`
}

// Load reads envFile when it exists, then the environment, then the scoring YAML file.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	cfg.Scoring, err = LoadScoringParams(cfg.ScoringFile)
	if err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		cfg.Auth.EphemeralSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables and defaults.
// Malformed numbers, durations and booleans are reported together.
func FromEnv() (*Config, error) {
	r := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
			DataDir: getEnvOrDefault("DATA_DIR", "./data"),
			Version: getEnvOrDefault("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level:      strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  r.int("LOG_MAX_SIZE_MB", 10),
			MaxBackups: r.int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: r.int("LOG_MAX_AGE_DAYS", 28),
		},
		Perception: PerceptionConfig{
			PoseEstimatorURL:  os.Getenv("POSE_ESTIMATOR_URL"),
			ObjectDetectorURL: os.Getenv("OBJECT_DETECTOR_URL"),
			APIKey:            os.Getenv("PERCEPTION_API_KEY"),
			Timeout:           r.duration("PERCEPTION_TIMEOUT", 30*time.Second),
			DetectorInputSize: r.int("DETECTOR_INPUT_SIZE", 640),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       r.int("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			PerMinute:        r.int("RATE_LIMIT_PER_MIN", 120),
			AnalyzePerMinute: r.int("ANALYZE_LIMIT_PER_MIN", 30),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  r.duration("JWT_TTL", 24*time.Hour),
			IssuerKey: os.Getenv("TOKEN_ISSUER_KEY"),
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			MaxBodyBytes:   r.int64("MAX_BODY_BYTES", 10<<20),
			MaxUploadBytes: r.int64("MAX_UPLOAD_BYTES", 16<<20),
			RequestTimeout: r.duration("REQUEST_TIMEOUT", 60*time.Second),
			EnableHSTS:     r.bool("ENABLE_HSTS", false),
		},
		CacheTTL:    r.duration("CACHE_TTL", 15*time.Minute),
		ScoringFile: os.Getenv("SCORING_CONFIG"),
		TargetFile:  os.Getenv("TARGET_CONFIG"),
		Scoring:     analysis.DefaultScoringParams(),
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScoringParams overlays the YAML file at path on the default parameters.
// An empty path or empty file yields the defaults; unknown keys are rejected.
func LoadScoringParams(path string) (analysis.ScoringParams, error) {
	params := analysis.DefaultScoringParams()
	if path == "" {
		return params, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return params, fmt.Errorf("failed to open scoring config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		return params, fmt.Errorf("failed to parse scoring config %s: %w", path, err)
	}
	return params, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"env", "yaml"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return v
}

// Validate checks every section, naming offending settings by their variable or YAML key
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.Security.MaxUploadBytes < c.Security.MaxBodyBytes {
		return fmt.Errorf("invalid configuration: MAX_UPLOAD_BYTES must be at least MAX_BODY_BYTES")
	}
	return nil
}

// ValidateScoring checks scoring parameters on their own, used by the CLI
func ValidateScoring(params analysis.ScoringParams) error {
	if err := validate.Struct(params); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() Config {
	out := *c
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "***"
	}
	if out.Auth.IssuerKey != "" {
		out.Auth.IssuerKey = "***"
	}
	if out.Redis.Password != "" {
		out.Redis.Password = "***"
	}
	if out.Perception.APIKey != "" {
		out.Perception.APIKey = "***"
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envReader parses typed variables and remembers every failure
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (r *envReader) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) int64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (r *envReader) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (r *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (r *envReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment: %w", errors.Join(r.errs...))
}
