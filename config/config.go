package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgREST = "postgrest"
	StoreDriverPostgres  = "postgres"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	Log      LogConfig
	Stripe   StripeConfig
	Store    StoreConfig
	Email    EmailConfig
	SMS      SMSConfig
	Checkout CheckoutConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
	BrandName   string
}

type ServerConfig struct {
	Host            string
	Port            string
	FunctionsPrefix string
}

type LogConfig struct {
	Level string
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	APIBaseURL                string
}

type StoreConfig struct {
	Driver          string
	SupabaseURL     string
	SupabaseKey     string
	Table           string
	PostgresDSN     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether enough is configured to reach a booking store.
func (c StoreConfig) Enabled() bool {
	if c.Driver == StoreDriverPostgres {
		return c.PostgresDSN != ""
	}
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

type EmailConfig struct {
	ResendAPIKey      string
	ResendBaseURL     string
	FromCustomer      string
	FromAdmin         string
	NotificationEmail string
	ContactPhone      string
	ContactEmail      string
}

type SMSConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	NotificationPhone string
	APIBaseURL        string
	HTTPTimeout       time.Duration
}

type CheckoutConfig struct {
	MinPaymentAmount int64
	DefaultCurrency  string
	DefaultBaseURL   string
	EventName        string
	ProductLabel     string
	ProductImageURL  string
}

type JobsConfig struct {
	ReconcileInterval   time.Duration
	ReconcileStaleAfter time.Duration
	BatchSize           int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(strings.TrimSpace(getEnv("BOOKING_STORE_DRIVER", StoreDriverPostgREST)))
	switch driver {
	case StoreDriverPostgREST:
	case StoreDriverPostgres:
		if os.Getenv("POSTGRES_DSN") == "" {
			return nil, fmt.Errorf("POSTGRES_DSN environment variable is required for the %s store driver", driver)
		}
	default:
		return nil, fmt.Errorf("unsupported BOOKING_STORE_DRIVER %q", driver)
	}

	brand := getEnv("BRAND_NAME", "Nodaluxe")

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "checkout-functions"),
			BrandName:   brand,
		},
		HTTP: ServerConfig{
			Host:            getEnv("HTTP_HOST", "0.0.0.0"),
			Port:            getEnv("HTTP_PORT", "8080"),
			FunctionsPrefix: getEnv("HTTP_FUNCTIONS_PREFIX", "/.netlify/functions"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			APIBaseURL:                getEnv("STRIPE_API_BASE_URL", ""),
		},
		Store: StoreConfig{
			Driver:          driver,
			SupabaseURL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			SupabaseKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
			Table:           getEnv("BOOKING_TABLE", "bookings"),
			PostgresDSN:     getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:    getIntEnv("POSTGRES_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getIntEnv("POSTGRES_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getMinutesEnv("POSTGRES_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Email: EmailConfig{
			ResendAPIKey:      getEnv("RESEND_API_KEY", ""),
			ResendBaseURL:     getEnv("RESEND_BASE_URL", ""),
			FromCustomer:      getEnv("EMAIL_FROM_CUSTOMER", brand+" Experiences <bookings@nodaluxe.com>"),
			FromAdmin:         getEnv("EMAIL_FROM_ADMIN", brand+" Bookings <bookings@nodaluxe.com>"),
			NotificationEmail: getEnv("NOTIFICATION_EMAIL", "info@nodaluxe.com"),
			ContactPhone:      getEnv("CONTACT_PHONE", "469-669-8878"),
			ContactEmail:      getEnv("CONTACT_EMAIL", "info@nodaluxe.com"),
		},
		SMS: SMSConfig{
			AccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:        getEnv("TWILIO_PHONE_NUMBER", ""),
			NotificationPhone: getEnv("NOTIFICATION_PHONE", "+14696698878"),
			APIBaseURL:        getEnv("TWILIO_API_BASE_URL", "https://api.twilio.com"),
			HTTPTimeout:       getSecondsEnv("TWILIO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Checkout: CheckoutConfig{
			MinPaymentAmount: int64(getIntEnv("MIN_PAYMENT_AMOUNT", 50)),
			DefaultCurrency:  strings.ToLower(getEnv("DEFAULT_CURRENCY", "usd")),
			DefaultBaseURL:   strings.TrimRight(getEnv("CHECKOUT_DEFAULT_BASE_URL", "https://nodaluxe.com"), "/"),
			EventName:        getEnv("CHECKOUT_EVENT_NAME", "ETHDenver 2025"),
			ProductLabel:     getEnv("CHECKOUT_PRODUCT_LABEL", `Prevost "Hack the Bus"`),
			ProductImageURL:  getEnv("CHECKOUT_PRODUCT_IMAGE_URL", "https://images.unsplash.com/photo-1544620347-c4fd4a3d5957?auto=format&fit=crop&w=800&q=80"),
		},
		Jobs: JobsConfig{
			ReconcileInterval:   getMinutesEnv("RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("RECONCILE_STALE_AFTER_MINUTES", 30*time.Minute),
			BatchSize:           int32(getIntEnv("JOB_BATCH_SIZE", 50)),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
