package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	associationapp "github.com/foncier/backend/internal/application/association"
	dossierapp "github.com/foncier/backend/internal/application/dossier"
	geoapp "github.com/foncier/backend/internal/application/geo"
	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/numbering"
	"github.com/foncier/backend/internal/application/pricing"
	"github.com/foncier/backend/internal/infrastructure/cache"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/event"
	"github.com/foncier/backend/internal/infrastructure/lock"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/persistence"
	"github.com/foncier/backend/internal/infrastructure/redisconn"
	"github.com/foncier/backend/internal/infrastructure/scheduler"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
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
		_ = logger.Sync(log)
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Logs are exported alongside traces; everything logged after this point
	// goes through the bridged logger
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	log = telemetry.BridgeLogger(log, loggerProvider, zapcore.InfoLevel)

	log.Info("Starting land registry backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Metrics
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewConsistencyMetrics(meterProvider.Meter(serviceName), log)
	if err != nil {
		log.Fatal("Failed to create consistency metrics", zap.Error(err))
	}
	defer metrics.Stop()

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: serviceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Initialize database connection; SQL is logged through zap
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			tracingCfg.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if err := telemetry.NewDBTracingPlugin(tracingCfg, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	metrics.StartPeriodicCollection(ctx, telemetry.NewGormStalePriceProvider(db.DB), cfg.Telemetry.MetricsInterval)

	// Redis backs the keyed lock and the statistics cache when either is configured for it
	var redisClient *redis.Client
	if redisconn.Required(cfg) {
		redisClient, err = redisconn.New(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	locker, err := lock.New(cfg.Numbering, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create keyed locker", zap.Error(err))
	}

	statsCache, err := cache.New(cfg.Cache, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create statistics cache", zap.Error(err))
	}
	defer func() {
		if err := statsCache.Close(); err != nil {
			log.Error("Error closing statistics cache", zap.Error(err))
		}
	}()
	if sub, ok := statsCache.(cache.Subscriber); ok {
		go func() {
			if err := sub.StartInvalidationSubscription(ctx); err != nil && ctx.Err() == nil {
				log.Error("Cache invalidation subscription stopped", zap.Error(err))
			}
		}()
	}

	// Initialize repositories
	hierarchyRepo := persistence.NewGormHierarchyRepository(db.DB)
	tariffRepo := persistence.NewGormTariffRepository(db.DB)
	dossierRepo := persistence.NewGormDossierRepository(db.DB)
	propertyRepo := persistence.NewGormPropertyRepository(db.DB)
	requesterRepo := persistence.NewGormRequesterRepository(db.DB)
	associationRepo := persistence.NewGormAssociationRepository(db.DB)
	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	statsRepo := persistence.NewGormStatsRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Event bus; audit records are deduplicated across replicas
	eventBus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewIdempotentHandler(
		event.NewAuditLogHandler(log),
		cache.NewIdempotencyStore(redisClient),
		log,
	)
	if err := eventBus.Subscribe(auditHandler); err != nil {
		log.Fatal("Failed to subscribe audit handler", zap.Error(err))
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Geography and cached statistics
	resolver := geoapp.NewResolver(hierarchyRepo)
	statsService := geoapp.NewStatsService(statsCache, statsRepo, resolver, log)
	statsService.SetMetrics(metrics)

	// Pricing
	recomputer := pricing.NewRecomputer(associationRepo, tariffRepo, log)
	recomputer.SetMetrics(metrics)
	cascade := pricing.NewCascade(associationRepo, recomputer, statsService, cfg.Cascade, log)
	cascade.SetMetrics(metrics)
	sweeper := pricing.NewSweeper(associationRepo, recomputer, statsService, cfg.Sweep.BatchSize, log)

	// Lifecycle hooks run after every mutation of a dossier record
	dispatcher := lifecycle.NewDispatcher(lifecycle.NewTable(lifecycle.Dependencies{
		Pricer:   recomputer,
		Cascader: cascade,
		Cache:    statsService,
	}), log)
	dispatcher.SetMetrics(metrics)

	// Background jobs: large tariff cascades and the stale price sweep
	schedulerCfg := scheduler.DefaultSchedulerConfig()
	if cfg.Cascade.Workers > 0 {
		schedulerCfg.MaxConcurrentJobs = cfg.Cascade.Workers
	}
	if cfg.Cascade.QueueSize > 0 {
		schedulerCfg.QueueSize = cfg.Cascade.QueueSize
	}
	if cfg.Cascade.JobTimeout > 0 {
		schedulerCfg.JobTimeout = cfg.Cascade.JobTimeout
	}
	if err := schedulerCfg.Validate(); err != nil {
		log.Fatal("Invalid scheduler configuration", zap.Error(err))
	}
	jobScheduler := scheduler.NewScheduler(schedulerCfg, log,
		scheduler.WithJobRecorder(scheduler.NewSchedulerJobRepository(db.DB)),
	)
	jobScheduler.Register(scheduler.JobKindTariffCascade, cascade)
	jobScheduler.Register(scheduler.JobKindPriceSweep, sweeper)
	cascade.SetSubmitter(jobScheduler)

	if err := jobScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer func() {
		// running cascades get the shutdown timeout to finish their batch
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := jobScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}()

	if cfg.Sweep.Enabled {
		sweepTrigger := scheduler.NewSweepTrigger(jobScheduler, scheduler.IntervalTriggerConfig{
			Interval:   cfg.Sweep.Interval,
			RunOnStart: true,
		}, log)
		if err := sweepTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sweep trigger", zap.Error(err))
		}
		defer func() {
			if err := sweepTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweep trigger", zap.Error(err))
			}
		}()
		log.Info("Stale price sweep scheduled", zap.Duration("interval", cfg.Sweep.Interval))
	}

	// Initialize application services
	tariffService := pricing.NewTariffService(tariffRepo, hierarchyRepo, dispatcher, log)
	tariffService.SetEventPublisher(eventBus)

	ranker := associationapp.NewRanker(txScope, locker, dispatcher, cfg.Numbering, log)
	ranker.SetEventPublisher(eventBus)
	ranker.SetMetrics(metrics)

	numberingService := numbering.NewService(txScope, documentRepo, locker, cfg.Numbering, log)
	numberingService.SetEventPublisher(eventBus)
	numberingService.SetMetrics(metrics)

	dossierService := dossierapp.NewDossierService(txScope, dossierRepo, hierarchyRepo, resolver, dispatcher, log)
	dossierService.SetEventPublisher(eventBus)

	propertyService := dossierapp.NewPropertyService(txScope, propertyRepo, dispatcher, log)
	propertyService.SetEventPublisher(eventBus)

	intakeService := dossierapp.NewIntakeService(txScope, requesterRepo, dispatcher, log)
	intakeService.SetEventPublisher(eventBus)

	services := &Services{
		Dossiers:     dossierService,
		Properties:   propertyService,
		Intake:       intakeService,
		Associations: ranker,
		Numbering:    numberingService,
		Tariffs:      tariffService,
		Stats:        statsService,
		Scopes:       resolver,
	}
	log.Info("Services ready",
		zap.Strings("services", services.Names()),
		zap.String("numbering_lock", cfg.Numbering.LockBackend),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Int("cascade_sync_threshold", cfg.Cascade.SyncThreshold),
	)

	// Wait for a termination signal; deferred stops unwind in reverse order of startup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down", zap.String("signal", sig.String()))
	stop()
}
