// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SKINCHECK"

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Email    EmailConfig    `mapstructure:"email"`
	Upload   UploadConfig   `mapstructure:"upload"`
	OTP      OTPConfig      `mapstructure:"otp"`
}

type AppConfig struct {
	Env            string        `mapstructure:"env"`       // local / prod
	LogLevel       string        `mapstructure:"log_level"` // debug / info / warn / error
	HTTPAddr       string        `mapstructure:"http_addr"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	CORSOrigins    []string      `mapstructure:"cors_origins"` // empty allows any origin
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres / mysql / sqlite
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig configures token revocation and OTP throttling. An empty Addr disables both.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Type      string      `mapstructure:"type"` // local / minio / s3
	LocalDir  string      `mapstructure:"local_dir"`
	PublicURL string      `mapstructure:"public_url"`
	MinIO     MinIOConfig `mapstructure:"minio"`
	S3        S3Config    `mapstructure:"s3"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type EmailConfig struct {
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	SMTPUser  string `mapstructure:"smtp_user"`
	SMTPPass  string `mapstructure:"smtp_pass"`
	FromEmail string `mapstructure:"from_email"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.FromEmail != ""
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type OTPConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	ResendCooldown  time.Duration `mapstructure:"resend_cooldown"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
	Retention       time.Duration `mapstructure:"retention"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.jwt_secret", "dev_secret_change_me")
	v.SetDefault("app.token_ttl", 24*time.Hour)
	v.SetDefault("app.cors_origins", []string{})
	v.SetDefault("app.metrics_enabled", true)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=skincheck port=5432 sslmode=disable")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "media")
	v.SetDefault("storage.public_url", "/media")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "skin-lesions")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_pass", "")
	v.SetDefault("email.from_email", "")

	v.SetDefault("upload.max_bytes", 10*1024*1024)

	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.resend_cooldown", 60*time.Second)
	v.SetDefault("otp.cleanup_schedule", "@every 1h")
	v.SetDefault("otp.retention", 24*time.Hour)
}

// Load reads configuration from defaults, an optional file and SKINCHECK_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("storage.local_dir is required for local storage")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return errors.New("storage.minio endpoint/bucket are required for minio storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("storage.type must be local, minio or s3, got %q", c.Storage.Type)
	}
	if c.App.Env == "prod" && (c.App.JWTSecret == "" || c.App.JWTSecret == "dev_secret_change_me") {
		return errors.New("app.jwt_secret must be set in prod")
	}
	if c.App.Env == "prod" && !c.Email.Enabled() {
		return errors.New("email.smtp_host and email.from_email must be set in prod")
	}
	if c.App.TokenTTL <= 0 {
		return errors.New("app.token_ttl must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp.ttl must be positive")
	}
	return nil
}
