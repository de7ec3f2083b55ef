package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Scanner   ScannerConfig
	Worker    WorkerConfig
	Auth      AuthConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Report    ReportConfig
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

// IsTest reports whether the process runs under test configuration.
func (a AppConfig) IsTest() bool {
	return a.Env == "test"
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LoggerConfig struct {
	Mode       string
	Level      string
	Dir        string
	MaxSize    int `mapstructure:"max_size"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAge     int `mapstructure:"max_age"`
	Compress   bool
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type SchedulerConfig struct {
	// Cron is a 6-field expression (with seconds). Empty disables scheduled runs.
	Cron         string `mapstructure:"cron"`
	Workers      int    `mapstructure:"workers"`
	AllowOverlap bool   `mapstructure:"allow_overlap"`
}

// ScannerConfig configures the headless browser. CaptureDir receives
// "screen capture" action output; only the base name of the requested file
// is kept.
type ScannerConfig struct {
	ChromePath   string   `mapstructure:"chrome_path"`
	ChromeArgs   []string `mapstructure:"chrome_args"`
	RunnerScript string   `mapstructure:"runner_script"`
	CaptureDir   string   `mapstructure:"capture_dir"`
}

// WorkerConfig sizes the queue worker process. Its scans run in addition to
// the scheduled batches of the web process.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTRefreshSecret string        `mapstructure:"jwt_refresh_secret"`
	AccessTTL        time.Duration `mapstructure:"access_ttl"`
	RefreshTTL       time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
}

type QuotaConfig struct {
	FreeURLLimit int `mapstructure:"free_url_limit"`
	PagesPerURL  int `mapstructure:"pages_per_url"`
}

type RateLimitConfig struct {
	ManualRunsPerMinute int `mapstructure:"manual_runs_per_minute"`
	Burst               int `mapstructure:"burst"`
}

type ReportConfig struct {
	FontPath string `mapstructure:"font_path"`
}

// Development secrets; Validate refuses them outside development and test.
const (
	defaultJWTSecret        = "change-this-secret-in-production"
	defaultJWTRefreshSecret = "change-this-refresh-secret"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("logger.mode", "dev")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.dir", "log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "wcag_monitor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scheduler.cron", "0 30 0 * * *")
	v.SetDefault("scheduler.workers", 2)
	v.SetDefault("scheduler.allow_overlap", false)

	v.SetDefault("scanner.chrome_path", "")
	v.SetDefault("scanner.chrome_args", []string{"--no-sandbox", "--disable-setuid-sandbox", "--disable-dev-shm-usage"})
	v.SetDefault("scanner.runner_script", "")
	v.SetDefault("scanner.capture_dir", "captures")

	v.SetDefault("worker.concurrency", 2)

	v.SetDefault("auth.jwt_secret", defaultJWTSecret)
	v.SetDefault("auth.jwt_refresh_secret", defaultJWTRefreshSecret)
	v.SetDefault("auth.access_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("quota.free_url_limit", 2)
	v.SetDefault("quota.pages_per_url", 100)

	v.SetDefault("ratelimit.manual_runs_per_minute", 6)
	v.SetDefault("ratelimit.burst", 2)

	v.SetDefault("report.font_path", "")
}

// LoadConfig reads configs/config.yaml (optional) and applies WCAG_* environment overrides.
func LoadConfig() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("./pkg/config")
	if path := os.Getenv("WCAG_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix("WCAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers)
	}
	if c.Quota.FreeURLLimit < 0 {
		return fmt.Errorf("quota.free_url_limit must not be negative")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	switch c.App.Env {
	case "development", "test":
	default:
		if c.Auth.JWTSecret == "" || c.Auth.JWTRefreshSecret == "" {
			return errors.New("auth.jwt_secret and auth.jwt_refresh_secret are required")
		}
		if c.Auth.JWTSecret == defaultJWTSecret || c.Auth.JWTRefreshSecret == defaultJWTRefreshSecret {
			return errors.New("auth.jwt_secret and auth.jwt_refresh_secret must be changed from their defaults")
		}
	}
	return nil
}

// loadEnvFiles loads ENV_FILE, or .env.local then .env. Missing files are ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}
