package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plata/internal/config"
	"plata/internal/database"
	"plata/internal/fx"
	"plata/internal/handlers"
	"plata/internal/logger"
	"plata/internal/middleware"
	"plata/internal/services"
	"plata/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()

	// Rate providers: ARS variants come from DolarAPI, crypto from CoinGecko.
	httpClient := &http.Client{Timeout: appConfig.ProviderTimeout}
	rateService := fx.NewService(db, []fx.Provider{
		fx.NewDolarAPIProvider(httpClient, appConfig.ARSSource),
		fx.NewCoinGeckoProvider(httpClient),
	}, fx.Options{
		MemoryTTL:   appConfig.MemoryCacheTTL,
		StoredTTL:   appConfig.StoredCacheTTL,
		Timeout:     appConfig.ProviderTimeout,
		Attempts:    appConfig.FetchAttempts,
		BackoffBase: appConfig.FetchBackoffBase,
	})

	// Initialize services
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	balanceService := services.NewBalanceService()
	pendingService := services.NewPendingService(db, appConfig.PendingMaxRetries)
	transactionService := services.NewTransactionService(db, userService, accountService, balanceService, rateService, pendingService)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	accountHandler := handlers.NewAccountHandler(accountService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	pendingHandler := handlers.NewPendingHandler(pendingService, transactionService)

	// Register custom binding validators
	validator.Register()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check and metrics endpoints
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group, caller identity resolved from the gateway header
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identity(userService))

	// User settings
	v1.PATCH("/users/tracking-mode", userHandler.UpdateTrackingMode)

	// Account routes
	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.ListAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)

	// Balances projection
	v1.GET("/balances", accountHandler.ListBalances)

	// Transaction routes
	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PATCH("/:id", transactionHandler.UpdateTransaction)

	// Pending transaction queue
	pending := v1.Group("/pending-transactions")
	pending.GET("", pendingHandler.ListPending)
	pending.POST("/retry", pendingHandler.RetryAll)

	log.Infof("Starting plata server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
