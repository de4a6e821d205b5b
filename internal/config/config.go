package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

const (
	defaultAppName         = "RealDigital"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultStoreBackend    = BackendMemory
	defaultBadgerPath      = "data/reserve"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSignatureSkew   = 5 * time.Minute
	defaultMintDecimals    = 2
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	signatureSkewEnvVar    = "SIGNATURE_MAX_SKEW"
	mintLimitEnvVar        = "DEFAULT_MINT_LIMIT"
	mintDecimalsEnvVar     = "MINT_DECIMALS"
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName          string
	AppEnv           string
	Port             string
	LogLevel         string
	LogFormat        string
	StoreBackend     string
	TokenBackend     string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	BadgerPath       string
	ReserveLabel     string
	ReserveProgram   string
	MintDecimals     uint8
	DefaultMintLimit uint64
	SignatureMaxSkew time.Duration
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		AppEnv:           getEnv("APP_ENV", defaultAppEnv),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", defaultStoreBackend)),
		TokenBackend:     strings.ToLower(os.Getenv("TOKEN_BACKEND")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		BadgerPath:       getEnv("BADGER_PATH", defaultBadgerPath),
		ReserveLabel:     getEnv("RESERVE_LABEL", reserve.DefaultLabel),
		ReserveProgram:   getEnv("RESERVE_PROGRAM", reserve.DefaultProgram),
		MintDecimals:     defaultMintDecimals,
		DefaultMintLimit: reserve.DefaultMintLimit,
		SignatureMaxSkew: defaultSignatureSkew,
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(signatureSkewEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", signatureSkewEnvVar, err)
		}
		cfg.SignatureMaxSkew = d
	}

	if v := os.Getenv(mintLimitEnvVar); v != "" {
		limit, err := strconv.ParseUint(v, 10, 64)
		if err != nil || limit == 0 {
			return Config{}, fmt.Errorf("invalid %s: must be a positive integer", mintLimitEnvVar)
		}
		cfg.DefaultMintLimit = limit
	}

	if v := os.Getenv(mintDecimalsEnvVar); v != "" {
		d, err := strconv.ParseUint(v, 10, 8)
		if err != nil || uint8(d) > reserve.MaxDecimals {
			return Config{}, fmt.Errorf("invalid %s: must be between 0 and %d", mintDecimalsEnvVar, reserve.MaxDecimals)
		}
		cfg.MintDecimals = uint8(d)
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	// Token balances must live in the reserve's store so both commit together.
	if cfg.TokenBackend == "" {
		cfg.TokenBackend = cfg.StoreBackend
	}
	if cfg.TokenBackend != cfg.StoreBackend {
		return Config{}, fmt.Errorf("TOKEN_BACKEND %q must match STORE_BACKEND %q", cfg.TokenBackend, cfg.StoreBackend)
	}

	if cfg.RedisURL == "" && !cfg.IsDevelopment() {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service runs in a local environment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
