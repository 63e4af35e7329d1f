package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mvoss/storefront/internal/address"
	"github.com/mvoss/storefront/internal/basket"
	"github.com/mvoss/storefront/internal/catalog"
	"github.com/mvoss/storefront/internal/checkout"
	"github.com/mvoss/storefront/internal/delivery"
	h "github.com/mvoss/storefront/internal/http"
	"github.com/mvoss/storefront/internal/order"
	"github.com/mvoss/storefront/internal/payment"
	"github.com/mvoss/storefront/internal/postgres"
	"github.com/mvoss/storefront/internal/publisher"
)

type Config struct {
	HTTPPort          string
	MongoURI          string
	MongoDBName       string
	MongoMaxPoolSize  uint64
	MongoMinPoolSize  uint64
	RedisAddr         string
	RedisPassword     string
	PgHost            string
	PgPort            int
	PgUser            string
	PgPassword        string
	PgDBName          string
	MigrationsDirPath string
	KafkaBrokers      []string
	PaymentGatewayURL string
	RequestTimeout    time.Duration
	GatewayTimeout    time.Duration
	SessionTTL        time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "storefront"),
		MongoMaxPoolSize:  uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 100)),
		MongoMinPoolSize:  uint64(getEnvInt("MONGO_MIN_POOL_SIZE", 10)),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		PgHost:            getEnv("PG_HOST", "localhost"),
		PgPort:            getEnvInt("PG_PORT", 5432),
		PgUser:            getEnv("PG_USER", "storefront"),
		PgPassword:        getEnv("PG_PASSWORD", "storefront"),
		PgDBName:          getEnv("PG_DB_NAME", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "./migrations"),
		KafkaBrokers:      []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", "http://localhost:9191"),
		RequestTimeout:    30 * time.Second,
		GatewayTimeout:    10 * time.Second,
		SessionTTL:        2 * time.Hour,
		ShutdownTimeout:   10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Postgres: catalog, delivery options, addresses, orders, outbox
	db, err := postgres.Connect(&postgres.Credentials{
		Host:     cfg.PgHost,
		Port:     cfg.PgPort,
		User:     cfg.PgUser,
		Password: cfg.PgPassword,
		DBName:   cfg.PgDBName,
	})
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer db.Close()
	if err := postgres.RunMigrations(db, cfg.MigrationsDirPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.PgHost, cfg.PgPort)

	// MongoDB: session-scoped baskets with TTL
	mongoDB, err := basket.ConnectMongo(ctx, basket.MongoConfig{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDBName,
		MaxPoolSize:    cfg.MongoMaxPoolSize,
		MinPoolSize:    cfg.MongoMinPoolSize,
		ConnectTimeout: 10 * time.Second,
		SelectTimeout:  5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Redis: basket cache and checkout session store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	catalogRepo := catalog.NewRepository(db)
	deliveryRepo := delivery.NewRepository(db)
	addressRepo := address.NewRepository(db)
	orderRepo := order.NewPostgresRepository(db)

	basketStore := basket.NewMongoStore(mongoDB)
	if err := basketStore.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create basket indexes: %v", err)
	}
	basketCache := basket.NewRedisCache(redisClient)
	basketService := basket.NewService(basketStore, basketCache, catalogRepo)

	sessionStore := checkout.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	orchestrator := checkout.NewOrchestrator(basketService, sessionStore, deliveryRepo, addressRepo)

	gateway := payment.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.GatewayTimeout)
	materializer := order.NewMaterializer(orderRepo, basketService, sessionStore)

	basketHandler := h.NewBasketHandler(basketService, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(orchestrator, materializer, gateway, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(orderRepo, cfg.RequestTimeout)
	productsHandler := h.NewProductsHandler(catalogRepo, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)
	r.Use(h.MockAuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productsHandler.ListProducts)
			r.Get("/{product_id}", productsHandler.GetProduct)
		})
		r.Route("/basket", func(r chi.Router) {
			r.Get("/", basketHandler.Summary)
			r.Post("/items", basketHandler.AddLine)
			r.Put("/items/{product_id}", basketHandler.UpdateLine)
			r.Delete("/items/{product_id}", basketHandler.DeleteLine)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/delivery", checkoutHandler.ListDeliveryOptions)
			r.Post("/delivery", checkoutHandler.SelectDelivery)
			r.Get("/address", checkoutHandler.EnterAddressStep)
			r.Post("/address", checkoutHandler.SelectAddress)
			r.Get("/payment", checkoutHandler.EnterPaymentStep)
			r.Post("/complete", checkoutHandler.CompletePayment)
			r.Post("/cancel", checkoutHandler.Cancel)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})
	})

	// Outbox poller publishing completed orders
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	poller := publisher.NewOutboxPoller(orderRepo, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	pollerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}

	log.Println("server exited")
}
