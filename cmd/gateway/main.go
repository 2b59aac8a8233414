package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddudev/storefront-gateway/internal/analytics"
	"github.com/ddudev/storefront-gateway/internal/api"
	"github.com/ddudev/storefront-gateway/internal/chatstream"
	convcache "github.com/ddudev/storefront-gateway/internal/conversation/cache"
	convrepo "github.com/ddudev/storefront-gateway/internal/conversation/repository"
	convsvc "github.com/ddudev/storefront-gateway/internal/conversation/service"
	"github.com/ddudev/storefront-gateway/internal/eligibility"
	"github.com/ddudev/storefront-gateway/internal/engine"
	"github.com/ddudev/storefront-gateway/internal/promotion"
	"github.com/ddudev/storefront-gateway/internal/region"
)

type Config struct {
	HTTPPort          string
	EngineBaseURL     string
	EnginePublishable string
	AssistantEndpoint string
	FreeShippingCode  string
	MongoURI          string
	MongoDBName       string
	RedisAddr         string
	RedisPassword     string
	KafkaBrokers      []string
	RequestTimeout    time.Duration
	StreamTimeout     time.Duration
	ShutdownTimeout   time.Duration
	RegionTTL         time.Duration
	RegionBackoff     time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		EngineBaseURL:     getEnv("ENGINE_BASE_URL", "http://localhost:9000"),
		EnginePublishable: getEnv("ENGINE_PUBLISHABLE_KEY", ""),
		AssistantEndpoint: getEnv("ASSISTANT_ENDPOINT", "http://localhost:4111/chat/stream"),
		FreeShippingCode:  getEnv("FREE_SHIPPING_CODE", promotion.DefaultFreeShippingCode),
		MongoURI:          getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName:       getEnv("MONGODB_DATABASE", "storefront"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		RequestTimeout:    30 * time.Second,
		StreamTimeout:     5 * time.Minute,
		ShutdownTimeout:   10 * time.Second,
		RegionTTL:         10 * time.Minute,
		RegionBackoff:     30 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := convrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	conversationRepo := convrepo.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

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

	// Analytics outbox (Postgres) and its Kafka poller
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}
	creds := &analytics.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              dbPort,
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/analytics/migrations"),
	}
	analyticsRepo, err := analytics.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer analyticsRepo.Close()

	if err := analyticsRepo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	pollerCtx, stopPoller := context.WithCancel(ctx)
	poller := analytics.NewPoller(analyticsRepo, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	// Commerce engine client and the eligibility pipeline
	engineClient := engine.NewClient(cfg.EngineBaseURL, cfg.EnginePublishable, cfg.RequestTimeout)
	resolver := promotion.NewResolver(engineClient, cfg.FreeShippingCode)
	regionCache := region.NewCache(engineClient, cfg.RegionTTL, cfg.RegionBackoff)
	eligibilityService := eligibility.NewService(engineClient, resolver, regionCache, analyticsRepo)

	// Conversation state and the assistant stream client
	recentCache := convcache.NewRedisCache(redisClient)
	conversationService := convsvc.NewConversationService(conversationRepo, recentCache)
	assistantClient := chatstream.NewClient(cfg.AssistantEndpoint, cfg.StreamTimeout)

	eligibilityHandler := api.NewEligibilityHandler(eligibilityService, cfg.RequestTimeout)
	chatHandler := api.NewChatHandler(assistantClient, conversationService, analyticsRepo)

	router := api.NewRouter(eligibilityHandler, chatHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout must outlive the longest chat stream
		WriteTimeout: cfg.StreamTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	stopPoller()
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Printf("failed to disconnect MongoDB: %v", err)
	}

	log.Println("server exited")
}
