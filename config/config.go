package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const DefaultContractAddress = "0xa9EDF625508bE4AcE93d3013B0cC4A5c3BD69F1a"

type Config struct {
	Port           int
	StoreDriver    string // postgres, sqlite, memory
	DatabaseURL    string
	ChainWSURL     string
	Contract       string
	GatewayToken   string
	AllowedOrigins []string

	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration
	ResyncInterval       time.Duration // 0 disables the periodic resync
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	return &Config{
		Port:                 getEnvInt("PORT", 5300),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ChainWSURL:           getEnv("CHAIN_WS_URL", ""),
		Contract:             getEnv("STACKSAVE_CONTRACT", DefaultContractAddress),
		GatewayToken:         getEnv("GATEWAY_TOKEN", ""),
		AllowedOrigins:       splitOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
		ReconnectBaseDelay:   getEnvDuration("RECONNECT_BASE_DELAY", 5*time.Second),
		ResyncInterval:       getEnvDuration("RESYNC_INTERVAL", 10*time.Minute),
	}
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for store driver %q", c.StoreDriver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.ChainWSURL == "" {
		errs = append(errs, errors.New("CHAIN_WS_URL is required"))
	}
	if !common.IsHexAddress(c.Contract) {
		errs = append(errs, fmt.Errorf("STACKSAVE_CONTRACT %q is not a hex address", c.Contract))
	}
	if c.GatewayToken == "" {
		errs = append(errs, errors.New("GATEWAY_TOKEN is required"))
	}
	if c.ReconnectMaxAttempts <= 0 {
		errs = append(errs, errors.New("RECONNECT_MAX_ATTEMPTS must be positive"))
	}
	if c.ReconnectBaseDelay <= 0 {
		errs = append(errs, errors.New("RECONNECT_BASE_DELAY must be positive"))
	}
	if c.ResyncInterval < 0 {
		errs = append(errs, errors.New("RESYNC_INTERVAL must not be negative"))
	}

	return errors.Join(errs...)
}

// AllowedOriginsString joins the origins the way fiber's cors config expects.
func (c *Config) AllowedOriginsString() string {
	return strings.Join(c.AllowedOrigins, ",")
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err == nil {
			return i
		}
		log.Printf("⚠️  Invalid integer %q for %s, using %d", val, key, defaultVal)
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("5s", "10m") or plain seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("⚠️  Invalid duration %q for %s, using %s", val, key, defaultVal)
	return defaultVal
}
