package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-api/internal/adapters/cache"
	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/adapters/http/routes"
	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/config"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/mailer"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	_ "classroom-api/docs" // Swagger docs
)

// @title Classroom API
// @version 1.0
// @description Classroom authentication, OTP and session API

// @contact.name API Support

// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase(db)

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	store, closeStore := newOTPStore(cfg)
	defer closeStore()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:       "Classroom API v1.0",
		CaseSensitive: true,
		ErrorHandler:  middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	otpMailer := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	if otpMailer.DevMode() {
		log.Println("⚠️ SMTP credentials not set, OTP codes will be logged only")
	}

	// Setup routes
	svc, err := routes.Setup(app, routes.Dependencies{
		DB:     db,
		Store:  store,
		Sender: otpMailer,
		Config: cfg,
	})
	if err != nil {
		log.Fatalf("❌ Failed to setup routes: %v", err)
	}

	// Seed bootstrap admin
	if err := config.NewSeeder(svc.User, cfg.Bootstrap).Run(context.Background()); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	// Start Cron Service for auth event retention
	cronService := services.NewCronService(repositories.NewAuthEventRepository(db), cfg.Audit.PurgeCron, cfg.Audit.RetentionDays)
	if err := cronService.Start(); err != nil {
		log.Printf("⚠️ Warning: Failed to start cron service: %v", err)
	}
	defer cronService.Stop()

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// newOTPStore uses Redis when REDIS_ADDR is set, otherwise in-process caches
func newOTPStore(cfg *config.Config) (services.OTPStore, func()) {
	opts := cache.Options{
		CodeTTL:         cfg.OTP.CodeTTL,
		CodeCapacity:    cfg.OTP.CodeCapacity,
		RequestWindow:   cfg.OTP.RequestWindow,
		RequestCapacity: cfg.OTP.RequestCapacity,
	}

	if cfg.Redis.Addr == "" {
		log.Println("✅ OTP store: in-memory")
		return cache.NewMemoryStore(opts), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Printf("✅ OTP store: redis [%s]", cfg.Redis.Addr)

	return cache.NewRedisStore(client, opts), func() {
		if err := client.Close(); err != nil {
			log.Printf("❌ Error closing Redis: %v", err)
		}
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
