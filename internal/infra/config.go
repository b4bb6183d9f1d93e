package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents backend API configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	MongoURI             string
	MongoDatabase        string
	DatabaseURL          string
	JWTSecret            string
	AllowLegacyPlaintext bool
	GeoIPDBPath          string
	KafkaBrokers         []string
	KafkaTopic           string
	AllowedOrigins       []string
	LoginRatePerMin      int
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
}

// LoadConfig loads backend configuration from environment variables and
// applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "4000"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "kortex_db"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		AllowLegacyPlaintext: getEnvBool("ALLOW_LEGACY_PLAINTEXT", false),
		GeoIPDBPath:          os.Getenv("GEOIP_DB_PATH"),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", "order-events"),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LoginRatePerMin:      getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// ClientConfig represents storefront runtime configuration.
type ClientConfig struct {
	AppEnv              string
	APIBaseURL          string
	WSURL               string
	ProfileDir          string
	RedisAddr           string
	ProfileName         string
	CatalogOwner        string
	CatalogRepo         string
	CatalogBranch       string
	CatalogPath         string
	CatalogToken        string
	CatalogPollInterval time.Duration
	PaymentBaseURL      string
	PaymentPublicKey    string
}

// LoadClientConfig loads storefront configuration. Nothing is strictly
// required: defaults point at a local backend and the public catalog repo.
func LoadClientConfig() (*ClientConfig, error) {
	home, _ := os.UserHomeDir()
	defaultProfile := ""
	if home != "" {
		defaultProfile = home + "/.kortstore"
	}

	cfg := &ClientConfig{
		AppEnv:              getEnv("APP_ENV", "development"),
		APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:4000"),
		WSURL:               getEnv("WS_URL", "ws://localhost:4000/ws"),
		ProfileDir:          getEnv("PROFILE_DIR", defaultProfile),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		ProfileName:         getEnv("PROFILE_NAME", "default"),
		CatalogOwner:        getEnv("CATALOG_OWNER", "kortstore"),
		CatalogRepo:         getEnv("CATALOG_REPO", "catalog"),
		CatalogBranch:       getEnv("CATALOG_BRANCH", "main"),
		CatalogPath:         getEnv("CATALOG_PATH", "products.json"),
		CatalogToken:        os.Getenv("CATALOG_TOKEN"),
		CatalogPollInterval: time.Second * time.Duration(getEnvInt("CATALOG_POLL_SECONDS", 30)),
		PaymentBaseURL:      getEnv("PAYMENT_BASE_URL", "https://api.mercadopago.com"),
		PaymentPublicKey:    os.Getenv("PAYMENT_PUBLIC_KEY"),
	}

	if cfg.ProfileDir == "" && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("PROFILE_DIR or REDIS_ADDR is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
