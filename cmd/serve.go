package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nodaluxe/ms-go-checkout/app/controller"
	"github.com/nodaluxe/ms-go-checkout/app/factory"
	"github.com/nodaluxe/ms-go-checkout/app/notifier"
	"github.com/nodaluxe/ms-go-checkout/app/provider"
	"github.com/nodaluxe/ms-go-checkout/app/repository"
	"github.com/nodaluxe/ms-go-checkout/app/service"
	"github.com/nodaluxe/ms-go-checkout/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/supabase-community/supabase-go"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server exposing the checkout functions.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, checkoutService, cleanup := mustCreateCheckoutService()
	defer cleanup()

	checkoutController := controller.NewCheckoutController(checkoutService)
	e := setupHTTPServer(checkoutController, cfg.HTTP.FunctionsPrefix)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(checkoutController *controller.CheckoutController, functionsPrefix string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit("1M"))

	e.GET("/health", checkoutController.Health)

	functions := e.Group(functionsPrefix, controller.FunctionGuard())
	functions.Any("/create-payment-intent", checkoutController.CreatePaymentIntent)
	functions.Any("/confirm-payment", checkoutController.ConfirmPayment)
	functions.Any("/stripe-webhook", checkoutController.StripeWebhook)
	functions.Any("/send-sms", checkoutController.SendSMS)
	functions.Any("/create-stripe-checkout", checkoutController.CreateStripeCheckout)

	return e
}

func mustCreateCheckoutService() (*config.Config, *service.CheckoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	store, cleanup := mustCreateBookingStore(cfg)

	gateway := provider.NewStripeGateway(provider.StripeConfig{
		SecretKey:                 cfg.Stripe.SecretKey,
		WebhookSecret:             cfg.Stripe.WebhookSecret,
		SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.Stripe.HTTPTimeout,
		APIBaseURL:                cfg.Stripe.APIBaseURL,
	}, factory.NewModuleLogger("stripe"))
	if !gateway.Configured() {
		logrus.Warn("STRIPE_SECRET_KEY not configured, payment functions will fail")
	}

	mailer, err := notifier.NewResendMailer(notifier.EmailConfig{
		APIKey:            cfg.Email.ResendAPIKey,
		BaseURL:           cfg.Email.ResendBaseURL,
		BrandName:         cfg.App.BrandName,
		FromCustomer:      cfg.Email.FromCustomer,
		FromAdmin:         cfg.Email.FromAdmin,
		NotificationEmail: cfg.Email.NotificationEmail,
		ContactPhone:      cfg.Email.ContactPhone,
		ContactEmail:      cfg.Email.ContactEmail,
	})
	if err != nil {
		cleanup()
		logrus.WithError(err).Fatal("Failed to create email client")
	}
	if !mailer.Enabled() {
		logrus.Warn("RESEND_API_KEY not configured, booking emails are disabled")
	}

	sms := notifier.NewTwilioSender(notifier.SMSConfig{
		AccountSID:        cfg.SMS.AccountSID,
		AuthToken:         cfg.SMS.AuthToken,
		FromNumber:        cfg.SMS.FromNumber,
		NotificationPhone: cfg.SMS.NotificationPhone,
		APIBaseURL:        cfg.SMS.APIBaseURL,
		HTTPTimeout:       cfg.SMS.HTTPTimeout,
	})

	checkoutService := service.NewCheckoutService(
		store,
		gateway,
		mailer,
		sms,
		cfg.Checkout,
		cfg.Jobs,
		cfg.App.BrandName,
		factory.NewModuleLogger("checkout-service"),
	)

	return cfg, checkoutService, cleanup
}

// mustCreateBookingStore returns a nil store when no backend is configured.
func mustCreateBookingStore(cfg *config.Config) (service.BookingStore, func()) {
	if !cfg.Store.Enabled() {
		logrus.WithField("driver", cfg.Store.Driver).Warn("Booking store not configured, bookings will not be persisted")
		return nil, func() {}
	}

	if cfg.Store.Driver == config.StoreDriverPostgres {
		db := mustOpenPostgres(cfg)
		cleanup := func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}
		return repository.NewPostgresBookingRepository(db), cleanup
	}

	client, err := supabase.NewClient(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey, &supabase.ClientOptions{})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create supabase client")
	}
	return repository.NewBookingRepository(client, cfg.Store.Table), func() {}
}

func mustOpenPostgres(cfg *config.Config) *sql.DB {
	db, err := sql.Open("pgx", cfg.Store.PostgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Store.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}
