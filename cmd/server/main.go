package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/cache"
	"github.com/masterlinc/orchestrator/internal/claims"
	"github.com/masterlinc/orchestrator/internal/collaborators"
	"github.com/masterlinc/orchestrator/internal/config"
	httpiface "github.com/masterlinc/orchestrator/internal/interfaces/http"
	"github.com/masterlinc/orchestrator/internal/nlp"
	"github.com/masterlinc/orchestrator/internal/notifier"
	"github.com/masterlinc/orchestrator/internal/store"
	"github.com/masterlinc/orchestrator/internal/worker"
	"github.com/masterlinc/orchestrator/internal/workflow"
	"github.com/masterlinc/orchestrator/pkg/database"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting workflow orchestrator",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database and migrations
	db, err := database.New(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Workflow store
	var workflowStore store.WorkflowStore
	switch cfg.Database.Driver {
	case database.DriverPostgres:
		workflowStore = store.NewPostgresStore(db.DB, logger)
	default:
		workflowStore = store.NewSQLiteStore(db.DB, logger)
	}

	// Workflow cache
	var workflowCache cache.WorkflowCache
	if cfg.Cache.Backend == "redis" {
		redisCache, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		workflowCache = redisCache
	} else {
		workflowCache = cache.NewMemoryCache(cfg.Cache.TTL)
	}

	// Event notifier: local-only unless a broker URL is configured
	var events notifier.Notifier
	local := notifier.NewLocalNotifier(logger)
	if cfg.Broker.URL != "" {
		events = notifier.NewBrokerNotifier(notifier.BrokerConfig{
			URL:               cfg.Broker.URL,
			Exchange:          cfg.Broker.Exchange,
			ReconnectInterval: cfg.Broker.ReconnectInterval,
		}, local, logger)
	} else {
		events = local
	}
	defer events.Close()

	// Collaborator clients
	timeout := cfg.Collaborators.Timeout
	var gateway collaborators.CallGateway = collaborators.NewVoiceGatewayClient(
		cfg.Collaborators.VoiceGatewayURL, timeout, logger)
	if cfg.NLP.OpenAIAPIKey != "" {
		analyzer := nlp.NewIntentAnalyzer(
			cfg.NLP.OpenAIAPIKey, cfg.NLP.Model, cfg.NLP.Temperature, logger)
		gateway = collaborators.WithIntentAnalyzer(gateway, analyzer)
		logger.Info("AI intent analysis enabled", zap.String("model", cfg.NLP.Model))
	}

	records := collaborators.NewPatientRecordsClient(
		cfg.Collaborators.PatientRecordsURL, timeout, logger)
	identifiers := collaborators.NewIdentifierRegistryClient(
		cfg.Collaborators.IdentifierRegistryURL, timeout, logger)

	var claimsProcessor collaborators.ClaimsProcessor
	if cfg.Collaborators.ClaimsEmbedded {
		claimStore := claims.NewStore(db, logger)
		claimsProcessor = claims.NewEmbeddedProcessor(claimStore, logger)
		logger.Info("Using embedded claims processing")
	} else {
		claimsProcessor = collaborators.NewClaimsProcessorClient(
			cfg.Collaborators.ClaimsProcessorURL, timeout, logger)
	}

	triager := nlp.NewTriager(cfg.Triage, logger)

	engine := workflow.NewEngine(workflow.Config{
		ProviderIdentifier: cfg.Collaborators.ProviderIdentifier,
		FacilityIdentifier: cfg.Collaborators.FacilityIdentifier,
	}, workflow.Deps{
		Store:       workflowStore,
		Cache:       workflowCache,
		Notifier:    events,
		Gateway:     gateway,
		Records:     records,
		Identifiers: identifiers,
		Claims:      claimsProcessor,
		Triager:     triager,
		Logger:      logger,
	})

	// Background workers
	manager := worker.NewManager(logger)
	if cfg.Workflow.ReaperEnabled {
		manager.Register(worker.NewReaper(
			workflowStore, engine,
			cfg.Workflow.PendingTimeout, cfg.Workflow.ReaperInterval,
			logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer manager.StopAll()

	srv := httpiface.NewServer(cfg.Server, engine, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
