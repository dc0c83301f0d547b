package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Performance PerformanceConfig
	Pipeline    PipelineConfig
	Reports     ReportsConfig
	Mail        MailConfig
	Clients     []ServiceClient
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PerformanceConfig governs cache behaviour for performance endpoints.
type PerformanceConfig struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	MaxUploadRows int
}

// PipelineConfig holds the tunable constants of the report pipeline.
type PipelineConfig struct {
	PageSize       int
	RowsPerColumn  int
	PageCapacity   int
	TopSeverityN   int
	WindowSize     int
	FullMarks      float64
	SubjectOrder   []string
	SeverityNone   float64
	SeverityLow    float64
	SeverityMedium float64
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	ReadyTimeout      time.Duration
	JobTimeout        time.Duration
}

// MailConfig configures report-ready notifications over Amazon SES.
type MailConfig struct {
	Region    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// ServiceClient is a machine client allowed to exchange a secret for an access token.
type ServiceClient struct {
	ID         string
	SecretHash string
	Role       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       v.GetString("DB_DRIVER"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		Path:         v.GetString("DB_PATH"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Performance = PerformanceConfig{
		CacheEnabled:  v.GetBool("ENABLE_PERFORMANCE_CACHE"),
		CacheTTL:      parseDuration(v.GetString("PERFORMANCE_CACHE_TTL"), 10*time.Minute),
		MaxUploadRows: v.GetInt("SCORES_MAX_UPLOAD_ROWS"),
	}

	cfg.Pipeline = PipelineConfig{
		PageSize:       v.GetInt("PIPELINE_PAGE_SIZE"),
		RowsPerColumn:  v.GetInt("PIPELINE_ROWS_PER_COLUMN"),
		PageCapacity:   v.GetInt("PIPELINE_PAGE_CAPACITY"),
		TopSeverityN:   v.GetInt("PIPELINE_TOP_SEVERITY"),
		WindowSize:     v.GetInt("PIPELINE_WINDOW_SIZE"),
		FullMarks:      v.GetFloat64("PIPELINE_FULL_MARKS"),
		SubjectOrder:   splitAndTrim(v.GetString("PIPELINE_SUBJECT_ORDER")),
		SeverityNone:   v.GetFloat64("PIPELINE_SEVERITY_NONE_MAX"),
		SeverityLow:    v.GetFloat64("PIPELINE_SEVERITY_LOW_MAX"),
		SeverityMedium: v.GetFloat64("PIPELINE_SEVERITY_MEDIUM_MAX"),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		ReadyTimeout:      parseDuration(v.GetString("REPORTS_READY_TIMEOUT"), 30*time.Second),
		JobTimeout:        parseDuration(v.GetString("REPORTS_JOB_TIMEOUT"), 5*time.Minute),
	}

	cfg.Mail = MailConfig{
		Region:    v.GetString("AWS_REGION"),
		FromEmail: v.GetString("SES_FROM_EMAIL"),
		FromName:  v.GetString("SES_FROM_NAME"),
		BaseURL:   v.GetString("APP_BASE_URL"),
	}

	cfg.Clients = parseClients(v.GetString("SERVICE_CLIENTS"))

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "performance_reports")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_PATH", "./performance.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "sma-performance-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_PERFORMANCE_CACHE", false)
	v.SetDefault("PERFORMANCE_CACHE_TTL", "10m")
	v.SetDefault("SCORES_MAX_UPLOAD_ROWS", 5000)

	v.SetDefault("PIPELINE_PAGE_SIZE", 18)
	v.SetDefault("PIPELINE_ROWS_PER_COLUMN", 23)
	v.SetDefault("PIPELINE_PAGE_CAPACITY", 46)
	v.SetDefault("PIPELINE_TOP_SEVERITY", 6)
	v.SetDefault("PIPELINE_WINDOW_SIZE", 5)
	v.SetDefault("PIPELINE_FULL_MARKS", 720)
	v.SetDefault("PIPELINE_SUBJECT_ORDER", "Physics,Chemistry,Botany,Zoology,Biology")
	v.SetDefault("PIPELINE_SEVERITY_NONE_MAX", 0)
	v.SetDefault("PIPELINE_SEVERITY_LOW_MAX", 30)
	v.SetDefault("PIPELINE_SEVERITY_MEDIUM_MAX", 70)

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
	v.SetDefault("REPORTS_READY_TIMEOUT", "30s")
	v.SetDefault("REPORTS_JOB_TIMEOUT", "5m")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SES_FROM_EMAIL", "")
	v.SetDefault("SES_FROM_NAME", "Performance Reports")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")

	v.SetDefault("SERVICE_CLIENTS", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseClients reads "id|bcrypt-hash|ROLE" entries separated by semicolons.
func parseClients(raw string) []ServiceClient {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	entries := strings.Split(raw, ";")
	clients := make([]ServiceClient, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 3 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		hash := strings.TrimSpace(parts[1])
		role := strings.ToUpper(strings.TrimSpace(parts[2]))
		if id == "" || hash == "" || role == "" {
			continue
		}
		clients = append(clients, ServiceClient{ID: id, SecretHash: hash, Role: role})
	}
	return clients
}
