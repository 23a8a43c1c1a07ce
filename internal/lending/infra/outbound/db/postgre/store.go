package postgre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedPostgres "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/postgres"
)

var tracer = otel.Tracer("lendinglab/lending/postgres")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// aggregateTable guarda agregados en JSONB con columna de versión.
type aggregateTable struct {
	db    *sql.DB
	table string
}

// insert devuelve false si el id ya existía.
func (t aggregateTable) insert(ctx context.Context, id string, state []byte, events []sharedDomain.OutboxEvent) (bool, error) {
	ctx, span := tracer.Start(ctx, t.table+".create", trace.WithAttributes(attribute.String("aggregate.id", id)))
	defer span.End()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, state, version) VALUES ($1, $2, 0)`, t.table),
		id, state,
	); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, events...); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (t aggregateTable) load(ctx context.Context, id string) ([]byte, sharedDomain.Version, error) {
	var state []byte
	var version int
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT state, version FROM %s WHERE id = $1`, t.table), id,
	).Scan(&state, &version)
	if err != nil {
		return nil, 0, err
	}
	return state, sharedDomain.Version(version), nil
}

func (t aggregateTable) update(ctx context.Context, id string, state []byte, expected sharedDomain.Version, events []sharedDomain.OutboxEvent) error {
	ctx, span := tracer.Start(ctx, t.table+".save", trace.WithAttributes(
		attribute.String("aggregate.id", id),
		attribute.Int("aggregate.version", int(expected)),
	))
	defer span.End()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET state = $1, version = version + 1 WHERE id = $2 AND version = $3`, t.table),
		state, id, int(expected),
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		span.SetAttributes(attribute.Bool("aggregate.conflict", true))
		return sharedDomain.ErrConcurrencyConflict
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, events...); err != nil {
		return err
	}
	return tx.Commit()
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// InitPostgres crea las tablas de lending, la hoja diaria y outbox si no existen.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"books", "patrons"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				state JSONB NOT NULL,
				version INTEGER NOT NULL
			)`, table)); err != nil {
			return err
		}
	}
	for table, column := range map[string]string{"sheet_holds": "hold_till", "sheet_checkouts": "till"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				patron_id UUID NOT NULL,
				book_id UUID NOT NULL,
				branch_id UUID NOT NULL,
				%[2]s TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (patron_id, book_id)
			)`, table, column)); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%[1]s_%[2]s ON %[1]s (%[2]s)`, table, column)); err != nil {
			return err
		}
	}
	return sharedPostgres.InitOutbox(ctx, db)
}
