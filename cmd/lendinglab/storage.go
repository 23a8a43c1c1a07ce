package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	catalogueDomain "github.com/davicafu/lendinglab/internal/catalogue/domain"
	catalogueMongo "github.com/davicafu/lendinglab/internal/catalogue/infra/outbound/db/mongodb"
	cataloguePostgres "github.com/davicafu/lendinglab/internal/catalogue/infra/outbound/db/postgre"
	catalogueSQLite "github.com/davicafu/lendinglab/internal/catalogue/infra/outbound/db/sqlite"
	config "github.com/davicafu/lendinglab/internal/config"
	lendingDomain "github.com/davicafu/lendinglab/internal/lending/domain"
	lendingMongo "github.com/davicafu/lendinglab/internal/lending/infra/outbound/db/mongodb"
	lendingPostgres "github.com/davicafu/lendinglab/internal/lending/infra/outbound/db/postgre"
	lendingSQLite "github.com/davicafu/lendinglab/internal/lending/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedMongo "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/mongodb"
	sharedPostgres "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/postgres"
	sharedSQLite "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/sqlite"
	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// storage agrupa los repositorios de un mismo backend: agregados y outbox
// comparten base de datos para poder escribirse en una transacción.
// drainLock es nil cuando el backend no sabe coordinar réplicas por sí mismo.
type storage struct {
	books     lendingDomain.BookRepository
	patrons   lendingDomain.PatronRepository
	sheet     lendingDomain.DailySheetRepository
	catalogue catalogueDomain.CatalogueRepository
	outbox    sharedDomain.OutboxRepository
	drainLock sharedLock.DrainLock
	close     func(context.Context) error
}

var errDrainLockRequired = errors.New("el backend necesita REDIS_ADDR para coordinar el drenado entre réplicas")

// drainLockFor prefiere el lock del propio backend y si no hay, el de Redis.
// Sin ninguno de los dos no se arranca: dos réplicas drenarían el mismo outbox.
func drainLockFor(store *storage, redisLock sharedLock.DrainLock) (sharedLock.DrainLock, error) {
	if store.drainLock != nil {
		return store.drainLock, nil
	}
	if redisLock != nil {
		return redisLock, nil
	}
	return nil, errDrainLockRequired
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		return openSQLite(ctx, cfg.SQLitePath, log)
	case "postgres":
		return openPostgres(ctx, cfg.PostgresDSN, log)
	case "mongodb":
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openSQLite(ctx context.Context, path string, log *zap.Logger) (*storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializa escrituras; una conexión evita SQLITE_BUSY entre transacciones.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := lendingSQLite.InitSQLite(db); err != nil {
		return nil, fmt.Errorf("init lending schema: %w", err)
	}
	if err := catalogueSQLite.InitSQLite(db); err != nil {
		return nil, fmt.Errorf("init catalogue schema: %w", err)
	}

	log.Info("🗄️ Almacenamiento SQLite", zap.String("path", path))
	return &storage{
		books:     lendingSQLite.NewBookRepoSQLite(db),
		patrons:   lendingSQLite.NewPatronRepoSQLite(db),
		sheet:     lendingSQLite.NewDailySheetRepoSQLite(db),
		catalogue: catalogueSQLite.NewCatalogueRepoSQLite(db),
		outbox:    sharedSQLite.NewOutboxRepoSQLite(db),
		drainLock: sharedLock.NewLocalLock(),
		close:     func(context.Context) error { return db.Close() },
	}, nil
}

func openPostgres(ctx context.Context, dsn string, log *zap.Logger) (*storage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := lendingPostgres.InitPostgres(ctx, db); err != nil {
		return nil, fmt.Errorf("init lending schema: %w", err)
	}
	if err := cataloguePostgres.InitPostgres(ctx, db); err != nil {
		return nil, fmt.Errorf("init catalogue schema: %w", err)
	}

	log.Info("🗄️ Almacenamiento Postgres")
	return &storage{
		books:     lendingPostgres.NewBookRepoPostgres(db),
		patrons:   lendingPostgres.NewPatronRepoPostgres(db),
		sheet:     lendingPostgres.NewDailySheetRepoPostgres(db),
		catalogue: cataloguePostgres.NewCatalogueRepoPostgres(db),
		outbox:    sharedPostgres.NewOutboxRepoPostgres(db),
		drainLock: sharedPostgres.NewAdvisoryLock(db, drainLockKey),
		close:     func(context.Context) error { return db.Close() },
	}, nil
}

// openMongo necesita un replica set: los repos escriben agregado y outbox en una transacción.
func openMongo(ctx context.Context, uri, dbName string, log *zap.Logger) (*storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	outbox := sharedMongo.NewOutboxRepoMongoDB(client, dbName)
	if err := outbox.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("outbox indexes: %w", err)
	}
	books, err := lendingMongo.NewBookRepoMongoDB(ctx, client, dbName)
	if err != nil {
		return nil, err
	}
	patrons, err := lendingMongo.NewPatronRepoMongoDB(ctx, client, dbName)
	if err != nil {
		return nil, err
	}
	sheet := lendingMongo.NewDailySheetRepoMongoDB(client, dbName)
	if err := sheet.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("daily sheet indexes: %w", err)
	}

	log.Info("🗄️ Almacenamiento MongoDB", zap.String("database", dbName))
	return &storage{
		books:     books,
		patrons:   patrons,
		sheet:     sheet,
		catalogue: catalogueMongo.NewCatalogueRepoMongoDB(client, dbName),
		outbox:    outbox,
		close:     client.Disconnect,
	}, nil
}
