package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/collably/backend/docs"
	"github.com/collably/backend/internal/database"
	"github.com/collably/backend/internal/handlers"
	mW "github.com/collably/backend/internal/middleware"
	"github.com/collably/backend/internal/services"
)

// @title Collably Backend API
// @version 1.0
// @description API for the Collably campaign marketplace
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("media.dir", "MEDIA_DIR")
	viper.BindEnv("media.base_url", "MEDIA_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Collably Backend API"
	docs.SwaggerInfo.Description = "API for the Collably campaign marketplace"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := services.NewEventBus()
	defer bus.Close()

	ledgerService := services.NewLedgerService(db)
	escrowService := services.NewEscrowService(db, ledgerService)
	workflowService := services.NewWorkflowService(db, ledgerService, escrowService, bus)
	campaignService := services.NewCampaignService(db, bus)
	authService := services.NewAuthService(db, redisClient)
	mediaService := services.NewMediaService(db)
	qrService := services.NewQRService(db, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

	// Fan change notifications out to sync clients over redis
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if redisClient != nil {
		publisher := services.NewSyncPublisher(redisClient, bus)
		go publisher.Run(ctx)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for review media
	viper.SetDefault("media.dir", "./static/media")
	r.Handle("/static/media/*", http.StripPrefix("/static/media/",
		mW.StaticFileServer(viper.GetString("media.dir"))))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/campaigns/{campaignId}", campaignService.GetCampaign)
		r.Post("/qr/resolve", qrHandler.ResolveQR)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Get("/auth/account", authService.GetUserAccount)

			// Campaign management
			r.Get("/campaigns", campaignService.ListCampaigns)
			r.Post("/campaigns", campaignService.CreateCampaign)
			r.Put("/campaigns/{campaignId}/status", campaignService.UpdateCampaignStatus)
			r.Put("/campaigns/{campaignId}/price", campaignService.UpdateCampaignPriceHandler)

			// Application workflow
			r.Post("/campaigns/{campaignId}/applications", workflowService.SubmitApplicationHandler)
			r.Get("/campaigns/{campaignId}/applications", workflowService.ListCampaignApplications)
			r.Put("/applications/{applicationId}/decision", workflowService.DecideApplicationHandler)

			// Order workflow
			r.Get("/orders", workflowService.ListOrders)
			r.Get("/orders/{orderId}", workflowService.GetOrder)
			r.Put("/orders/{orderId}/ship", workflowService.ShipOrderHandler)
			r.Put("/orders/{orderId}/deliver", workflowService.DeliverOrderHandler)
			r.Post("/orders/{orderId}/review", workflowService.SubmitReviewHandler)
			r.Put("/orders/{orderId}/review/decision", workflowService.DecideSubmissionHandler)
			r.Put("/orders/{orderId}/cancel", workflowService.CancelOrderHandler)

			// Wallet and earnings
			r.Get("/wallet/balance", ledgerService.GetWalletBalance)
			r.Get("/wallet/transactions", ledgerService.ListWalletTransactions)
			r.Post("/wallet/topup", ledgerService.TopUpWallet)
			r.Get("/earnings", escrowService.ListEarnings)
			r.Put("/earnings/{earningId}/pay", escrowService.MarkEarningPaid)

			// Review media
			r.Post("/media", mediaService.UploadMedia)
			r.Post("/media/delete", mediaService.DeleteMedia)

			// Campaign share codes
			r.Post("/qr/generate", qrHandler.GenerateQR)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
