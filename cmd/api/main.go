package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cartcache "github.com/jeseias/djezyas/internal/cart/cache"
	"github.com/jeseias/djezyas/internal/cart/poller"
	cartrepo "github.com/jeseias/djezyas/internal/cart/repository"
	cartservice "github.com/jeseias/djezyas/internal/cart/service"
	catalogrepo "github.com/jeseias/djezyas/internal/catalog/repository"
	"github.com/jeseias/djezyas/internal/config"
	apihttp "github.com/jeseias/djezyas/internal/http"
	"github.com/jeseias/djezyas/internal/order/publisher"
	orderrepo "github.com/jeseias/djezyas/internal/order/repository"
	orderservice "github.com/jeseias/djezyas/internal/order/service"
	orgrepo "github.com/jeseias/djezyas/internal/org/repository"
	paymentdomain "github.com/jeseias/djezyas/internal/payment/domain"
	"github.com/jeseias/djezyas/internal/payment/provider"
	paymentrepo "github.com/jeseias/djezyas/internal/payment/repository"
	paymentservice "github.com/jeseias/djezyas/internal/payment/service"
	"github.com/jeseias/djezyas/internal/postgres"
	userrepo "github.com/jeseias/djezyas/internal/user/repository"
	"github.com/jeseias/djezyas/pkg/logger"
	"github.com/jeseias/djezyas/pkg/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Mongo holds carts and the user read model.
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			log.Error("mongodb disconnect failed", zap.Error(err))
		}
	}()

	if err := cartrepo.EnsureIndexes(ctx, mongoDB); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Postgres holds orders and payment intents.
	pgCred := &postgres.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	pgDB, err := postgres.Connect(pgCred)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgDB.Close()
	if err := pgDB.RunMigrations(pgCred); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	// SQLite holds the catalog and organization read models.
	catalogDB, err := catalogrepo.Open(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog db: %w", err)
	}
	defer catalogDB.Close()
	if err := catalogrepo.RunMigrations(catalogDB, cfg.Catalog.MigrationsDirPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}

	cartRepository := cartrepo.NewMongoRepository(mongoDB)
	cartCache := cartcache.NewRedisCacheTTL(redisClient, cfg.Redis.CartTTL)
	productRepository := catalogrepo.NewSQLiteRepository(catalogDB)
	orgRepository := orgrepo.NewSQLiteRepository(catalogDB)
	userRepository := userrepo.NewMongoRepository(mongoDB)
	orderRepository := orderrepo.NewRepository(pgDB)
	intentRepository := paymentrepo.NewRepository(pgDB)

	eventPublisher := publisher.NewPublisher(cfg.Kafka.Brokers...)
	defer eventPublisher.Close()

	signer := token.NewSigner(cfg.Token.Secret, cfg.Token.Issuer)

	registry := provider.NewRegistry()
	registry.Register(paymentdomain.ProviderRedirect, provider.NewRedirectProvider(provider.RedirectConfig{
		BaseURL:   cfg.Provider.BaseURL,
		FrameID:   cfg.Provider.FrameID,
		Terminal:  cfg.Provider.Terminal,
		ReturnURL: cfg.Provider.ReturnURL,
		Timeout:   cfg.Provider.Timeout,
	}))

	cartSvc := cartservice.NewCartService(cartRepository, cartCache, productRepository, log)
	orderSvc := orderservice.NewOrderService(
		orderRepository, pgDB, cartSvc, productRepository, orgRepository, userRepository,
		eventPublisher, log)
	paymentSvc := paymentservice.NewPaymentService(
		intentRepository, orderRepository, orderSvc, registry, signer, pgDB, log)

	cartPoller := poller.NewPoller(cartRepository, cartCache, log, cfg.Kafka.Brokers...)
	defer cartPoller.Close()
	go cartPoller.Run(ctx)

	expirer := paymentservice.NewExpirer(intentRepository, time.Minute, log)
	go expirer.Run(ctx)

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Carts:    cartSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		Webhooks: paymentSvc,
		Verifier: signer,
		Timeout:  cfg.Server.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}
