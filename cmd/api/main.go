package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"storefront/handlers"
	"storefront/internal/addresses"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/consul"
	"storefront/internal/coupons"
	"storefront/internal/email"
	"storefront/internal/orders"
	"storefront/internal/payments"
	"storefront/internal/products"
	"storefront/internal/stores/kafka"
	"storefront/internal/stores/postgres"
	"storefront/internal/users"
	"storefront/internal/wishlist"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on system environment")
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := postgres.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	keys, err := auth.NewKeys(cfg.SessionSecret)
	if err != nil {
		log.Fatalf("failed to init auth keys: %v", err)
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		log.Fatalf("failed to init payment gateway: %v", err)
	}

	cartConf, err := cart.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init cart store: %v", err)
	}
	orderConf, err := orders.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init order store: %v", err)
	}
	productConf, err := products.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init product store: %v", err)
	}
	userConf, err := users.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init user store: %v", err)
	}
	wishlistConf, err := wishlist.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init wishlist store: %v", err)
	}
	addressConf, err := addresses.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init address store: %v", err)
	}
	couponConf, err := coupons.NewConf(db)
	if err != nil {
		log.Fatalf("failed to init coupon store: %v", err)
	}

	kafkaConf, err := kafka.NewConf(cfg.KafkaBrokers)
	if err != nil {
		log.Fatalf("failed to init kafka producer: %v", err)
	}
	defer kafkaConf.Close()

	mailer := email.NewConf(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom)

	h := handlers.NewHandler(cfg, keys, gateway,
		cartConf, orderConf, productConf, userConf,
		wishlistConf, addressConf, couponConf, kafkaConf, mailer)
	r, err := handlers.API(h)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	consulClient, err := consul.NewClient(cfg.ConsulAddress)
	if err != nil {
		log.Fatalf("failed to init consul client: %v", err)
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Fatalf("invalid PORT %q: %v", cfg.Port, err)
	}
	if err := consul.RegisterService(consulClient, cfg.ServiceName, cfg.ServiceHost, port); err != nil {
		log.Fatalf("failed to register with consul: %v", err)
	}

	slog.Info("starting api server", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func newGateway(cfg *config.Config) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		return payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	case "payfast":
		return payments.NewPayfastGateway(cfg.PayfastMerchantID, cfg.PayfastMerchantKey,
			cfg.PayfastPassphrase, cfg.AppBaseURL, cfg.PayfastSandbox)
	}
	return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
}
