package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	StoreDriver            string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey         string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer             string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience           string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS           float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int           `mapstructure:"RATE_LIMIT_BURST"`
	ClinicTimezone         string        `mapstructure:"CLINIC_TIMEZONE"`
	DefaultPharmacyID      string        `mapstructure:"DEFAULT_PHARMACY_ID"`
	AvgConsultationMinutes int           `mapstructure:"AVG_CONSULTATION_MINUTES"`
	PollIntervalPatient    time.Duration `mapstructure:"POLL_INTERVAL_PATIENT"`
	PollIntervalDoctor     time.Duration `mapstructure:"POLL_INTERVAL_DOCTOR"`
	PollIntervalPharmacy   time.Duration `mapstructure:"POLL_INTERVAL_PHARMACY"`
	RequestTimeout         time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit              string        `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CLINIC_TIMEZONE", "DEFAULT_PHARMACY_ID",
	"AVG_CONSULTATION_MINUTES", "POLL_INTERVAL_PATIENT", "POLL_INTERVAL_DOCTOR",
	"POLL_INTERVAL_PHARMACY", "REQUEST_TIMEOUT", "BODY_LIMIT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("DEFAULT_PHARMACY_ID", "main")
	v.SetDefault("AVG_CONSULTATION_MINUTES", 10)
	v.SetDefault("POLL_INTERVAL_PATIENT", "5s")
	v.SetDefault("POLL_INTERVAL_DOCTOR", "3s")
	v.SetDefault("POLL_INTERVAL_PHARMACY", "10s")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" && len(cfg.CORSOrigins) <= 1 {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}

	if cfg.StoreDriver == StorePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active: identity comes from X-Dev-* headers.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AvgConsultation is the per-patient wait used for estimated_wait.
func (c *Config) AvgConsultation() time.Duration {
	return time.Duration(c.AvgConsultationMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is required so real JWT authentication is enforced.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, c.StoreDriver)
	}
	if c.StoreDriver == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
	}
	if !c.IsDev() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes outside development (ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.StoreDriver == StoreMemory {
		return fmt.Errorf("STORE_DRIVER=%q loses all data on restart and is not allowed in production", StoreMemory)
	}
	if c.AvgConsultationMinutes <= 0 {
		return fmt.Errorf("AVG_CONSULTATION_MINUTES must be positive, got %d", c.AvgConsultationMinutes)
	}
	for name, d := range map[string]time.Duration{
		"POLL_INTERVAL_PATIENT":  c.PollIntervalPatient,
		"POLL_INTERVAL_DOCTOR":   c.PollIntervalDoctor,
		"POLL_INTERVAL_PHARMACY": c.PollIntervalPharmacy,
	} {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s, got %s", name, d)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if _, err := clock.LoadLocation(c.ClinicTimezone); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	if strings.TrimSpace(c.DefaultPharmacyID) == "" {
		return fmt.Errorf("DEFAULT_PHARMACY_ID is required")
	}
	return nil
}
