package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/alerting"
	"github.com/possync/backend/internal/application/deduction"
	"github.com/possync/backend/internal/application/ingestion"
	inventoryapp "github.com/possync/backend/internal/application/inventory"
	mappingapp "github.com/possync/backend/internal/application/mapping"
	orderapp "github.com/possync/backend/internal/application/order"
	"github.com/possync/backend/internal/application/processing"
	"github.com/possync/backend/internal/application/queue"
	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/infrastructure/cache"
	"github.com/possync/backend/internal/infrastructure/config"
	"github.com/possync/backend/internal/infrastructure/event"
	"github.com/possync/backend/internal/infrastructure/logger"
	"github.com/possync/backend/internal/infrastructure/persistence"
	"github.com/possync/backend/internal/infrastructure/worker"
	"github.com/possync/backend/internal/interfaces/http/handler"
	"github.com/possync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting POS sync backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	menuItemRepo := persistence.NewGormMenuItemRepository(db.DB)
	recipeRepo := persistence.NewGormRecipeRepository(db.DB)
	inventoryItemRepo := persistence.NewGormInventoryItemRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	mappingRepo := persistence.NewGormProductMappingRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	tableRepo := persistence.NewGormDiningTableRepository(db.DB)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Duplicate-folio store: Redis when reachable, in-memory otherwise
	storeFactory := cache.NewDuplicateStoreFactory(cfg.Redis, cache.WithLogger(log))
	seenStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create duplicate store", zap.Error(err))
	}
	defer func() {
		if err := seenStore.Close(); err != nil {
			log.Error("Error closing duplicate store", zap.Error(err))
		}
	}()

	// Application services
	queueSvc := queue.NewService(saleRepo, log)
	queueSvc.SetEventPublisher(eventBus)

	mapperSvc := mappingapp.NewMapperService(mappingRepo, menuItemRepo, log)

	engine := deduction.NewEngine(menuItemRepo, recipeRepo, inventoryItemRepo, movementRepo, log)
	engine.SetEventPublisher(eventBus)
	engine.SetWasteMultiplier(decimal.NewFromFloat(cfg.Processing.WasteMultiplier))

	alertSvc := alerting.NewLowStockService(inventoryItemRepo, log)
	alertSvc.SetEventPublisher(eventBus)

	stockSvc := inventoryapp.NewStockService(inventoryItemRepo, movementRepo, log)

	materializerSvc := orderapp.NewMaterializerService(orderRepo, tableRepo, log)

	processor := processing.NewProcessor(
		queueSvc,
		saleRepo,
		mapperSvc,
		engine,
		alertSvc,
		materializerSvc,
		processing.Options{AllowNegativeStock: cfg.Processing.AllowNegativeStock},
		log,
	)

	ingestionSvc := ingestion.NewService(saleRepo, queueSvc, seenStore, shared.DuplicateWindowConfig{
		Window:  cfg.Ingestion.DuplicateWindow,
		Enabled: cfg.Ingestion.DuplicateWindowEnabled,
	}, log)

	// Background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var saleWorker *worker.SaleWorker
	if cfg.Worker.Enabled {
		saleWorker = worker.NewSaleWorker(processor, queueSvc, worker.Config{
			Count:              cfg.Worker.Count,
			BatchSize:          cfg.Worker.BatchSize,
			PollInterval:       cfg.Worker.PollInterval,
			StaleTimeout:       cfg.Worker.StaleTimeout,
			StaleCheckInterval: cfg.Worker.StaleCheckInterval,
		}, log)
		if err := saleWorker.Start(workerCtx); err != nil {
			log.Fatal("Failed to start sale worker", zap.Error(err))
		}
		log.Info("Sale worker started", zap.Int("count", cfg.Worker.Count))
	} else {
		log.Warn("Sale worker disabled, queued sales will not be processed by this instance")
	}

	// HTTP surface
	engineHTTP := router.NewEngine(log)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(engineHTTP, router.WithAPIVersion("v1"))
	r.Register(handler.NewSaleHandler(ingestionSvc, saleRepo, log)).
		Register(handler.NewQueueHandler(queueSvc, log)).
		Register(handler.NewMappingHandler(mappingRepo, log)).
		Register(handler.NewInventoryHandler(movementRepo, stockSvc, alertSvc, log))
	r.Setup()
	r.RegisterSystemRoutes(handler.NewSystemHandler(db))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain workers so
	// in-flight sales finish or are left in processing for stale recovery
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if saleWorker != nil {
		if err := saleWorker.Stop(ctx); err != nil {
			log.Error("Sale worker shutdown timed out", zap.Error(err))
		}
	}
	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Event bus shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
