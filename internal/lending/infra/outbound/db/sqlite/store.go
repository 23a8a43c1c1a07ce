package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedSQLite "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/sqlite"
)

var tracer = otel.Tracer("lendinglab/lending/sqlite")

// aggregateTable guarda agregados como JSON con columna de versión para bloqueo optimista.
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

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, state, version) VALUES (?, ?, 0) ON CONFLICT(id) DO NOTHING`, t.table),
		id, string(state),
	)
	if err != nil {
		return false, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return false, nil
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, events...); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// load devuelve sql.ErrNoRows si no existe.
func (t aggregateTable) load(ctx context.Context, id string) ([]byte, sharedDomain.Version, error) {
	var state string
	var version int
	err := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT state, version FROM %s WHERE id = ?`, t.table), id,
	).Scan(&state, &version)
	if err != nil {
		return nil, 0, err
	}
	return []byte(state), sharedDomain.Version(version), nil
}

// update compara la versión dentro del propio UPDATE; 0 filas afectadas es un conflicto.
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
		fmt.Sprintf(`UPDATE %s SET state = ?, version = version + 1 WHERE id = ? AND version = ?`, t.table),
		string(state), id, int(expected),
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

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, events...); err != nil {
		return err
	}
	return tx.Commit()
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// InitSQLite crea las tablas de lending, la hoja diaria y la de outbox si no existen.
func InitSQLite(db *sql.DB) error {
	for _, table := range []string{"books", "patrons"} {
		if _, err := db.Exec(fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                id TEXT PRIMARY KEY,
                state TEXT NOT NULL,
                version INTEGER NOT NULL
            )
        `, table)); err != nil {
			return err
		}
	}
	for table, column := range map[string]string{"sheet_holds": "hold_till", "sheet_checkouts": "till"} {
		if _, err := db.Exec(fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %[1]s (
                patron_id TEXT NOT NULL,
                book_id TEXT NOT NULL,
                branch_id TEXT NOT NULL,
                %[2]s INTEGER NOT NULL,
                PRIMARY KEY (patron_id, book_id)
            )
        `, table, column)); err != nil {
			return err
		}
	}
	return sharedSQLite.InitOutbox(db)
}
