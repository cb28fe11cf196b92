package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"tinysubs/internal/ledger"
	"tinysubs/pkg/address"
	"tinysubs/pkg/hash"
)

type Config struct {
	DatabaseDriver      string
	DatabaseURL         string
	JWTSecret           string
	Owner               address.Address
	PlatformFeeBPS      uint64
	HTTPAddr            string
	MetricsUser         string
	MetricsPasswordHash string
	CORSOrigins         []string
	LogLevel            string
	RateLimitPerMinute  int

	// EnvFileLoaded is false when no .env was found; the process
	// environment is used alone.
	EnvFileLoaded bool
}

// Load reads .env (if present) and the environment. OWNER_ADDRESS and
// JWT_SECRET are required.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		DatabaseDriver:      getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		MetricsUser:         getEnv("METRICS_USER", "metrics"),
		MetricsPasswordHash: os.Getenv("METRICS_PASSWORD_HASH"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		EnvFileLoaded:       loaded,
	}

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	if cfg.MetricsPasswordHash != "" {
		if err := hash.ValidateHash(cfg.MetricsPasswordHash); err != nil {
			return nil, errors.Wrap(err, "METRICS_PASSWORD_HASH")
		}
	}

	owner, err := address.Parse(os.Getenv("OWNER_ADDRESS"))
	if err != nil {
		return nil, errors.Wrap(err, "OWNER_ADDRESS")
	}
	cfg.Owner = owner

	fee, err := strconv.ParseUint(getEnv("PLATFORM_FEE_BPS", strconv.Itoa(ledger.DefaultFeeBasisPoints)), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "PLATFORM_FEE_BPS")
	}
	cfg.PlatformFeeBPS = fee

	limit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "300"))
	if err != nil || limit <= 0 {
		return nil, errors.Newf("RATE_LIMIT_PER_MINUTE: invalid value %q", os.Getenv("RATE_LIMIT_PER_MINUTE"))
	}
	cfg.RateLimitPerMinute = limit

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
