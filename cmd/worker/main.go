package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"plata/internal/config"
	"plata/internal/database"
	"plata/internal/fx"
	"plata/internal/logger"
	"plata/internal/services"
)

// The worker runs one retry sweep over the pending-transaction queue and
// exits. Scheduling is external (cron, typically every two hours).
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	exhausted, err := run()
	if err != nil {
		logger.Get().Errorf("Worker error: %v", err)
		os.Exit(1)
	}
	if exhausted > 0 {
		os.Exit(2)
	}
}

func run() (int, error) {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return 0, fmt.Errorf("failed to create database manager: %w", err)
	}
	db := dbManager.DB()

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

	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db)
	balanceService := services.NewBalanceService()
	pendingService := services.NewPendingService(db, appConfig.PendingMaxRetries)
	transactionService := services.NewTransactionService(db, userService, accountService, balanceService, rateService, pendingService)

	outcomes := pendingService.RetryAll(context.Background(), transactionService.ResolvePending)

	var resolved, failed, exhausted int
	for _, outcome := range outcomes {
		switch {
		case outcome.Resolved:
			resolved++
		case outcome.Exhausted:
			exhausted++
		default:
			failed++
		}
	}

	log.Infow("retry sweep completed",
		"attempted", len(outcomes),
		"resolved", resolved,
		"still_pending", failed,
		"exhausted", exhausted,
	)
	return exhausted, nil
}
