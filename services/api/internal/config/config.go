package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is read when LEARNCIRCLE_CONFIG is unset.
const ConfigPath = "config.yaml"

// MemoryDatabaseURL selects the in-process store instead of Postgres.
const MemoryDatabaseURL = "memory"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	Host     string `yaml:"host"`
	AppURL   string `yaml:"appURL"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	SessionTTL          string `yaml:"sessionTTL"`
	JWTPrivateKeyPath   string `yaml:"jwtPrivateKeyPath"`
	JWTPublicKeyPath    string `yaml:"jwtPublicKeyPath"`
	JWTKeyID            string `yaml:"jwtKeyId"`
	JWTVerifyPublicKeys string `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer           string `yaml:"jwtIssuer"`
	JWTAudience         string `yaml:"jwtAudience"`
	JWTLeeway           string `yaml:"jwtLeeway"`

	CreateCourseAPI    string `yaml:"createCourseAPI"`
	GenerateChapterAPI string `yaml:"generateChapterAPI"`
	ContentTimeout     string `yaml:"contentTimeout"`
	ContentWorkers     int    `yaml:"contentWorkers"`
	ContentMaxAttempts int    `yaml:"contentMaxAttempts"`
	QueueStream        string `yaml:"queueStream"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	PDFURLExpiry   string `yaml:"pdfURLExpiry"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	TrustedProxies             string `yaml:"trustedProxies"`
	RegisterRateLimitPerMinute int    `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int    `yaml:"loginRateLimitPerMinute"`
}

// PathFromEnv returns LEARNCIRCLE_CONFIG or ConfigPath.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("LEARNCIRCLE_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads the YAML file at path, applies environment overrides and validates.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = PathFromEnv()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	stringVars := []struct {
		env string
		dst *string
	}{
		{"PORT", &cfg.Port},
		{"HOST", &cfg.Host},
		{"APP_URL", &cfg.AppURL},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_PASSWORD", &cfg.RedisPassword},
		{"SESSION_TTL", &cfg.SessionTTL},
		{"JWT_PRIVATE_KEY_PATH", &cfg.JWTPrivateKeyPath},
		{"JWT_PUBLIC_KEY_PATH", &cfg.JWTPublicKeyPath},
		{"JWT_KEY_ID", &cfg.JWTKeyID},
		{"JWT_VERIFY_PUBLIC_KEYS", &cfg.JWTVerifyPublicKeys},
		{"JWT_ISSUER", &cfg.JWTIssuer},
		{"JWT_AUDIENCE", &cfg.JWTAudience},
		{"JWT_LEEWAY", &cfg.JWTLeeway},
		{"CREATE_COURSE_API", &cfg.CreateCourseAPI},
		{"GENERATE_CHAPTERS_API", &cfg.GenerateChapterAPI},
		{"CONTENT_TIMEOUT", &cfg.ContentTimeout},
		{"MINIO_ENDPOINT", &cfg.MinioEndpoint},
		{"MINIO_ACCESS_KEY", &cfg.MinioAccessKey},
		{"MINIO_SECRET_KEY", &cfg.MinioSecretKey},
		{"MINIO_BUCKET", &cfg.MinioBucket},
		{"PDF_URL_EXPIRY", &cfg.PDFURLExpiry},
		{"AMQP_URL", &cfg.AMQPURL},
		{"TRUSTED_PROXIES", &cfg.TrustedProxies},
	}
	for _, o := range stringVars {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	ints := []struct {
		env string
		dst *int
	}{
		{"CONTENT_WORKERS", &cfg.ContentWorkers},
		{"CONTENT_MAX_ATTEMPTS", &cfg.ContentMaxAttempts},
		{"REGISTER_RATE_LIMIT_PER_MINUTE", &cfg.RegisterRateLimitPerMinute},
		{"LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute},
	}
	for _, o := range ints {
		if v := os.Getenv(o.env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*o.dst = n
			}
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
}

func validateConfig(cfg FileConfig) error {
	required := []struct {
		name, value string
	}{
		{"port", cfg.Port},
		{"appURL", cfg.AppURL},
		{"databaseURL", cfg.DatabaseURL},
		{"redisAddr", cfg.RedisAddr},
		{"jwtPrivateKeyPath", cfg.JWTPrivateKeyPath},
		{"createCourseAPI", cfg.CreateCourseAPI},
		{"generateChapterAPI", cfg.GenerateChapterAPI},
		{"minioEndpoint", cfg.MinioEndpoint},
		{"minioBucket", cfg.MinioBucket},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("config: %s is required (set in config.yaml)", r.name)
		}
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.ContentWorkers < 0 || cfg.ContentMaxAttempts < 0 {
		return errors.New("config: contentWorkers and contentMaxAttempts must be >= 0")
	}
	for _, d := range []struct{ name, value string }{
		{"sessionTTL", cfg.SessionTTL},
		{"jwtLeeway", cfg.JWTLeeway},
		{"contentTimeout", cfg.ContentTimeout},
		{"pdfURLExpiry", cfg.PDFURLExpiry},
	} {
		if _, err := ParseDuration(d.name, d.value, 0); err != nil {
			return err
		}
	}
	if _, err := ParseVerifyPublicKeys(cfg.JWTVerifyPublicKeys); err != nil {
		return err
	}
	return nil
}

// ParseDuration parses an optional duration field, returning fallback when empty.
func ParseDuration(name, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

// ParseVerifyPublicKeys parses "kid=path,kid2=path2" into a map.
func ParseVerifyPublicKeys(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(raw) {
		kid, path, ok := strings.Cut(pair, "=")
		kid, path = strings.TrimSpace(kid), strings.TrimSpace(path)
		if !ok || kid == "" || path == "" {
			return nil, fmt.Errorf("invalid jwtVerifyPublicKeys entry %q", pair)
		}
		out[kid] = path
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ParseTrustedProxies splits the comma-separated proxy list.
func ParseTrustedProxies(raw string) []string {
	return splitList(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
