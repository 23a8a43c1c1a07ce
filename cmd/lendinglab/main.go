package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	catalogueApp "github.com/davicafu/lendinglab/internal/catalogue/application"
	catalogueDomain "github.com/davicafu/lendinglab/internal/catalogue/domain"
	catalogueHttp "github.com/davicafu/lendinglab/internal/catalogue/infra/inbound/http"
	config "github.com/davicafu/lendinglab/internal/config"
	lendingApp "github.com/davicafu/lendinglab/internal/lending/application"
	lendingDomain "github.com/davicafu/lendinglab/internal/lending/domain"
	lendingHttp "github.com/davicafu/lendinglab/internal/lending/infra/inbound/http"
	lendingAnalytics "github.com/davicafu/lendinglab/internal/lending/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/lendinglab/internal/shared/clock"
	sharedDomainEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	infraEvents "github.com/davicafu/lendinglab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/lendinglab/internal/shared/infra/platform/cache"
	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
	"github.com/davicafu/lendinglab/internal/shared/infra/relayer"
	"github.com/davicafu/lendinglab/pkg/logger"
	"github.com/davicafu/lendinglab/pkg/telemetry"
)

const (
	serviceName     = "lendinglab"
	drainLockKey    = "lendinglab:outbox:drain"
	shutdownTimeout = 10 * time.Second
)

// ---------------- Main ----------------
func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel, serviceName)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Trazas ----------------
	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// ---------------- DB ----------------
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.close(context.Background())

	branch, err := lendingDomain.ParseLibraryBranchID(cfg.LendingBranchID)
	if err != nil {
		log.Fatal("invalid LENDING_BRANCH_ID", zap.Error(err))
	}

	// ---------------- Cache y lock ----------------
	var cacheInstance sharedCache.Cache
	var redisLock sharedLock.DrainLock
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		} else {
			cacheInstance = sharedCache.NewRedisCache(rdb, cfg.CacheTTL)
			redisLock = sharedLock.NewRedisLock(rdb, drainLockKey, cfg.LockTTL)
			log.Info("✅ Redis conectado, cache y lock distribuido habilitados")
		}
	}
	if cacheInstance == nil {
		inMemory := sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		defer inMemory.Stop()
		cacheInstance = inMemory
	}
	drainLock, err := drainLockFor(store, redisLock)
	if err != nil {
		log.Fatal("no drain lock for storage driver", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	// --------------- Servicios --------------
	clk := clock.NewSystem()
	lendingService := lendingApp.NewLendingService(store.patrons, store.books, store.outbox, store.sheet, clk, log)
	catalogueService := catalogueApp.NewCatalogueService(store.catalogue, cacheInstance, clk, log)

	// ---------------- Eventos ---------------
	registry := sharedDomainEvents.Merge(lendingDomain.NewEventRegistry(), catalogueDomain.NewEventRegistry())
	publisher := infraEvents.NewForwardingPublisher(log)
	idempotent := func(name string, sub sharedBus.Subscriber) sharedBus.Subscriber {
		return infraEvents.NewIdempotentSubscriber(name, sub, cacheInstance, cfg.IdempotencyTTL, log)
	}
	subscribe := func(name string, sub sharedBus.Subscriber) {
		publisher.Subscribe(name, idempotent(name, sub))
	}

	// Mismo nombre en el relayer y en Kafka: un ejemplar llega una sola vez por cualquiera de los dos caminos
	catalogueHandler := idempotent("catalogue", lendingApp.NewCatalogueEventsHandler(store.books, branch, log))

	subscribe("books", lendingApp.NewBookEventsHandler(store.books, store.outbox, clk, log))
	subscribe("patrons", lendingApp.NewPatronEventsHandler(lendingService))
	publisher.Subscribe("catalogue", catalogueHandler)
	subscribe("daily-sheet", lendingApp.NewDailySheetProjection(store.sheet))

	if len(cfg.KafkaBrokers) > 0 {
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Balancer: &kafka.Hash{},
		}
		defer writer.Close()
		subscribe("kafka", infraEvents.NewKafkaPublisher(writer, registry, cfg.KafkaTopic, log))
		log.Info("🚀 Reenviando eventos a Kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	var consumer *infraEvents.KafkaConsumer
	if len(cfg.KafkaBrokers) > 0 && len(cfg.KafkaConsumeTopics) > 0 {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.KafkaBrokers,
			GroupID:     cfg.KafkaGroupID,
			GroupTopics: cfg.KafkaConsumeTopics,
		})
		defer reader.Close()
		consumer = infraEvents.NewKafkaConsumer(reader, catalogueDomain.NewEventRegistry(), catalogueHandler, log)
		log.Info("🎧 Consumiendo catálogo desde Kafka", zap.Strings("topics", cfg.KafkaConsumeTopics))
	}

	var analytics lendingDomain.LendingAnalyticsRepository
	if cfg.ClickHouseAddr != "" {
		repo, err := lendingAnalytics.NewLendingAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, sin analítica", zap.Error(err))
		} else if err := repo.InitSchema(ctx); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de ClickHouse", zap.Error(err))
		} else {
			defer repo.Close()
			subscribe("clickhouse", repo)
			analytics = repo
			log.Info("📊 Analítica en ClickHouse habilitada")
		}
	}

	worker := relayer.NewOutboxWorker(store.outbox, publisher, registry, relayer.Config{
		Interval:       cfg.OutboxPeriod,
		BatchSize:      cfg.OutboxLimit,
		ForwardTimeout: cfg.ForwardTimeout,
	}, log, relayer.WithDrainLock(drainLock))

	// ---------------- HTTP ----------------
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	lendingHttp.RegisterLendingRoutes(router, lendingHttp.NewLendingHandler(lendingService, analytics, log))
	catalogueHttp.RegisterCatalogueRoutes(router, catalogueHttp.NewCatalogueHandler(catalogueService, log))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}

	// ---------------- Ciclo de vida ----------------
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		lendingService.RunDailySheets(gctx, cfg.SheetsInterval)
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("❌ Servicio detenido con error", zap.Error(err))
		return
	}
	log.Info("🛑 Servicio detenido")
}
