package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTTTL             time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	SMTPHost           string        `mapstructure:"SMTP_HOST"`
	SMTPPort           int           `mapstructure:"SMTP_PORT"`
	SMTPUsername       string        `mapstructure:"SMTP_USERNAME"`
	SMTPPassword       string        `mapstructure:"SMTP_PASSWORD"`
	SMTPFromName       string        `mapstructure:"SMTP_FROM_NAME"`
	BlobDriver         string        `mapstructure:"BLOB_DRIVER"`
	BlobFSRoot         string        `mapstructure:"BLOB_FS_ROOT"`
	BlobS3Bucket       string        `mapstructure:"BLOB_S3_BUCKET"`
	BlobS3Region       string        `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint     string        `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle    bool          `mapstructure:"BLOB_S3_PATH_STYLE"`
	MaxUploadBytes     int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	ReportMunicipality string        `mapstructure:"REPORT_MUNICIPALITY"`
	SeedCatalogOnStart bool          `mapstructure:"SEED_CATALOG_ON_START"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	AuthRateLimitRPS   float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst int           `mapstructure:"AUTH_RATE_LIMIT_BURST"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM_NAME",
	"BLOB_DRIVER", "BLOB_FS_ROOT", "BLOB_S3_BUCKET", "BLOB_S3_REGION",
	"BLOB_S3_ENDPOINT", "BLOB_S3_PATH_STYLE", "MAX_UPLOAD_BYTES",
	"REPORT_MUNICIPALITY", "SEED_CATALOG_ON_START",
	"BODY_LIMIT", "AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM_NAME", "Plataforma Digital")
	v.SetDefault("BLOB_DRIVER", "fs")
	v.SetDefault("BLOB_FS_ROOT", "./uploads")
	v.SetDefault("BLOB_S3_REGION", "us-east-1")
	v.SetDefault("MAX_UPLOAD_BYTES", 10*1024*1024)
	v.SetDefault("REPORT_MUNICIPALITY", "Município")
	v.SetDefault("SEED_CATALOG_ON_START", true)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)

	// Unmarshal only sees env vars that were bound explicitly.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// viper's default slice hook does not trim around commas.
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is empty; using an insecure development secret.")
		cfg.JWTSecret = "dev-insecure-secret"
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
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

// SMTPConfigured reports whether outbound email has credentials. Without
// them the notifier logs and skips every send.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development (ENV=%q)", c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	switch c.BlobDriver {
	case "fs":
		if c.BlobFSRoot == "" {
			return fmt.Errorf("BLOB_FS_ROOT is required when BLOB_DRIVER is \"fs\"")
		}
	case "s3":
		if c.BlobS3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required when BLOB_DRIVER is \"s3\"")
		}
	default:
		return fmt.Errorf("BLOB_DRIVER must be \"fs\" or \"s3\", got %q", c.BlobDriver)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.AuthRateLimitRPS <= 0 || c.AuthRateLimitBurst <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
