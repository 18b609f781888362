package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-razorpay/app/metrics"
	"github.com/vibast-solutions/ms-go-razorpay/app/provider"
	"github.com/vibast-solutions/ms-go-razorpay/app/repository"
	"github.com/vibast-solutions/ms-go-razorpay/app/service"
	"github.com/vibast-solutions/ms-go-razorpay/config"
)

// application holds the services shared by the serve and job commands.
type application struct {
	cfg          *config.Config
	metrics      *metrics.Collectors
	ledger       *service.Ledger
	orderCreator *service.OrderCreator
	verifier     *service.PaymentVerifier
	webhooks     *service.WebhookAuthenticator
	jobs         *service.JobService
}

// newApplication wires services over whatever backing stores are available.
// db and redisClient may be nil; without a database there is no ledger and
// webhooks are only logged.
func newApplication(cfg *config.Config, db *sql.DB, redisClient redis.UniversalClient, gateway provider.Gateway) *application {
	m := metrics.New()

	var (
		ledger     *service.Ledger
		dispatcher service.EventDispatcher = service.NewLoggingDispatcher()
		replay     service.ReplayGuard
		deliveries service.WebhookDeliveryRecorder
	)
	if db != nil {
		ledger = service.NewLedger(repository.NewOrderRepository(db), repository.NewPaymentEventRepository(db))
		dispatcher = ledger
		deliveries = repository.NewWebhookDeliveryRepository(db)
	}
	if redisClient != nil {
		replay = repository.NewWebhookReplayStore(redisClient)
	}

	return &application{
		cfg:          cfg,
		metrics:      m,
		ledger:       ledger,
		orderCreator: service.NewOrderCreator(gateway, ledger, m),
		verifier:     service.NewPaymentVerifier(cfg.Razorpay.KeySecret, ledger, m),
		webhooks: service.NewWebhookAuthenticator(
			service.WebhookConfig{Secret: cfg.Razorpay.WebhookSecret, ReplayTTL: cfg.Payments.WebhookReplayTTL},
			dispatcher,
			replay,
			deliveries,
			m,
		),
		jobs: service.NewJobService(ledger, gateway, cfg.Payments, m),
	}
}

func mustCreateApplication() (*application, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	if cfg.Razorpay.WebhookSecret == "" {
		logrus.Warn("RAZORPAY_WEBHOOK_SECRET is not set; every webhook will be rejected")
	}

	db := mustOpenDatabase(cfg.MySQL)
	redisClient := openRedis(cfg.Redis)

	gateway := provider.NewRazorpayGateway(provider.RazorpayConfig{
		KeyID:       cfg.Razorpay.KeyID,
		KeySecret:   cfg.Razorpay.KeySecret,
		HTTPTimeout: cfg.Razorpay.HTTPTimeout,
	})

	var redisIface redis.UniversalClient
	if redisClient != nil {
		redisIface = redisClient
	}
	app := newApplication(cfg, db, redisIface, gateway)

	cleanup := func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		if db != nil {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}
	}

	return app, cleanup
}

func mustOpenDatabase(cfg config.MySQLConfig) *sql.DB {
	if !cfg.Enabled() {
		logrus.Warn("MYSQL_DSN is not set; running without the payment ledger")
		return nil
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

// openRedis returns nil when Redis is not configured. An unreachable server
// is kept: the replay guard tolerates outages and the client reconnects.
func openRedis(cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled() {
		logrus.Info("REDIS_ADDR is not set; webhook replay guard disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.Addr).Warn("Redis ping failed")
	}
	return client
}
