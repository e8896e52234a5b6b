package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv reads a Go duration string ("15s", "2m").
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the postgres connection string.
func (c DBConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	RateTTL  time.Duration
}

type PayOSConfig struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
}

type SePayConfig struct {
	WebhookKey    string
	AccountNumber string
	BankCode      string
	QRBaseURL     string
}

type LemonSqueezyConfig struct {
	APIKey        string
	StoreID       string
	VariantID     string
	WebhookSecret string
	BaseURL       string
	RedirectURL   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type CurrencyConfig struct {
	APIKey  string
	BaseURL string
	// CronSecret guards the manual sync endpoint.
	CronSecret string
}

type SchedulerConfig struct {
	ExpireScanInterval time.Duration
	PendingTTL         time.Duration
	RateSyncInterval   time.Duration
}

// Config is the typed view of the environment, built once in main.
type Config struct {
	Env                 string
	Port                string
	JWTSecret           string
	AllowedOrigins      string
	ProviderHTTPTimeout time.Duration
	DB                  DBConfig
	Redis               RedisConfig
	PayOS               PayOSConfig
	SePay               SePayConfig
	LemonSqueezy        LemonSqueezyConfig
	Stripe              StripeConfig
	Currency            CurrencyConfig
	Scheduler           SchedulerConfig
}

// Load reads the process environment. Missing gateway secrets are left
// empty; the adapters report them when used.
func Load() Config {
	return Config{
		Env:                 GetEnv("ENV", "development"),
		Port:                GetEnv("PORT", "8080"),
		JWTSecret:           GetEnv("JWT_SECRET", ""),
		AllowedOrigins:      GetEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		ProviderHTTPTimeout: GetDurationEnv("PROVIDER_HTTP_TIMEOUT", 15*time.Second),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "ocru"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			RateTTL:  GetDurationEnv("RATE_CACHE_TTL", 10*time.Minute),
		},
		PayOS: PayOSConfig{
			ClientID:    GetEnv("PAYOS_CLIENT_ID", ""),
			APIKey:      GetEnv("PAYOS_API_KEY", ""),
			ChecksumKey: GetEnv("PAYOS_CHECKSUM_KEY", ""),
			BaseURL:     GetEnv("PAYOS_BASE_URL", "https://api-merchant.payos.vn"),
			ReturnURL:   GetEnv("PAYOS_RETURN_URL", "http://localhost:3000/billing/success"),
			CancelURL:   GetEnv("PAYOS_CANCEL_URL", "http://localhost:3000/billing/cancel"),
		},
		SePay: SePayConfig{
			WebhookKey:    GetEnv("SEPAY_WEBHOOK_KEY", ""),
			AccountNumber: GetEnv("SEPAY_ACCOUNT_NUMBER", ""),
			BankCode:      GetEnv("SEPAY_BANK_NAME", "MBBank"),
			QRBaseURL:     GetEnv("SEPAY_QR_BASE_URL", "https://qr.sepay.vn/img"),
		},
		LemonSqueezy: LemonSqueezyConfig{
			APIKey:        GetEnv("LEMON_SQUEEZY_API_KEY", ""),
			StoreID:       GetEnv("LEMON_SQUEEZY_STORE_ID", ""),
			VariantID:     GetEnv("LEMON_SQUEEZY_VARIANT_ID", ""),
			WebhookSecret: GetEnv("LEMON_SQUEEZY_WEBHOOK_SECRET", ""),
			BaseURL:       GetEnv("LEMON_SQUEEZY_BASE_URL", "https://api.lemonsqueezy.com"),
			RedirectURL:   GetEnv("LEMON_SQUEEZY_REDIRECT_URL", "http://localhost:3000/billing/success"),
		},
		Stripe: StripeConfig{
			SecretKey:     GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    GetEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/billing/success"),
			CancelURL:     GetEnv("STRIPE_CANCEL_URL", "http://localhost:3000/billing/cancel"),
		},
		Currency: CurrencyConfig{
			APIKey:     GetEnv("CURRENCY_API_KEY", ""),
			BaseURL:    GetEnv("CURRENCY_API_BASE_URL", "https://v6.exchangerate-api.com"),
			CronSecret: GetEnv("CRON_SECRET", ""),
		},
		Scheduler: SchedulerConfig{
			ExpireScanInterval: time.Duration(GetIntEnv("PENDING_EXPIRE_SCAN_MINUTES", 5)) * time.Minute,
			PendingTTL:         time.Duration(GetIntEnv("PENDING_EXPIRE_TTL_MINUTES", 15)) * time.Minute,
			RateSyncInterval:   GetDurationEnv("RATE_SYNC_INTERVAL", 12*time.Hour),
		},
	}
}
