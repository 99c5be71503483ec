package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trainbites/trainbites/internal/cache"
	"github.com/trainbites/trainbites/internal/catalog"
	"github.com/trainbites/trainbites/internal/events"
	h "github.com/trainbites/trainbites/internal/http"
	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/poller"
	"github.com/trainbites/trainbites/internal/repository"
	"github.com/trainbites/trainbites/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type Config struct {
	HTTPPort             string
	MongoURI             string
	MongoDBName          string
	RedisAddr            string
	RedisPassword        string
	KafkaBrokers         []string
	KafkaTopic           string
	StripeKey            string
	StripeWebhookSecret  string
	Currency             string
	PendingPaymentTTL    time.Duration
	ReaperInterval       time.Duration
	RequestTimeout       time.Duration
	ShutdownTimeout      time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:         getEnv("MONGO_DB_NAME", "trainbites"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:        splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "order-events"),
		StripeKey:           getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		Currency:            getEnv("CURRENCY", "usd"),
		// Zero disables the reaper: stale PENDING_PAYMENT orders are left
		// alone unless a TTL is configured
		PendingPaymentTTL: getDurationEnv("PENDING_PAYMENT_TTL", 0),
		ReaperInterval:    getDurationEnv("REAPER_INTERVAL", time.Minute),
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logger.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// MongoDB
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}
	logger.Info().Str("uri", cfg.MongoURI).Msg("connected to MongoDB")

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	orderRepo := repository.NewMongoOrderRepository(mongoDB)
	agentRepo := repository.NewMongoAgentRepository(mongoDB)
	productCatalog := catalog.NewMongoCatalog(mongoDB)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	cartCache := cache.NewRedisCache(redisClient)

	// Kafka (optional; without brokers events are dropped)
	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Msg("publishing order events to kafka")
	}

	// Payments
	if cfg.StripeKey == "" {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set; online payments will fail")
	}
	paymentProvider := payment.NewStripeProvider(cfg.StripeKey)

	// Services
	cartService := service.NewCartService(cartRepo, cartCache, productCatalog)
	checkoutService := service.NewCheckoutService(orderRepo, cartService, productCatalog, paymentProvider, publisher, service.NewDiscountRegistry(), cfg.Currency)
	fulfillmentService := service.NewFulfillmentService(orderRepo, agentRepo, publisher)
	deliveryService := service.NewDeliveryService(orderRepo, agentRepo, publisher)

	// Handlers
	cartHandler := h.NewCartHandler(cartService, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(fulfillmentService, cfg.RequestTimeout)
	deliveryHandler := h.NewDeliveryHandler(deliveryService, cfg.RequestTimeout)
	webhookHandler := h.NewPaymentWebhookHandler(fulfillmentService, cfg.StripeWebhookSecret, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.ActorMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Payment provider callbacks (out-of-band, raw body)
	r.Post("/webhook/payment", webhookHandler.Webhook)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Post("/checkout", checkoutHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
			r.Post("/{order_id}/status", ordersHandler.UpdateStatus)
		})

		r.Get("/restaurant/orders", ordersHandler.ListRestaurantOrders)

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/pool", deliveryHandler.Pool)
			r.Post("/orders/{order_id}/accept", deliveryHandler.Accept)
			r.Post("/orders/{order_id}/decline", deliveryHandler.Decline)
			r.Put("/availability", deliveryHandler.SetAvailability)
		})
	})

	// Stale pending-payment reaper
	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	if cfg.PendingPaymentTTL > 0 {
		reaper := poller.NewReaper(orderRepo, cfg.PendingPaymentTTL, cfg.ReaperInterval)
		go reaper.Run(reaperCtx)
		logger.Info().Dur("ttl", cfg.PendingPaymentTTL).Msg("pending-payment reaper running")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopReaper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		logger.Warn().Err(err).Msg("mongo disconnect error")
	}

	logger.Info().Msg("server exited")
}
