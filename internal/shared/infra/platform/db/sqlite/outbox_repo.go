package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// OutboxRepoSQLite implementa domain.OutboxRepository sobre SQLite.
// El orden de inserción lo da la columna seq (AUTOINCREMENT).
type OutboxRepoSQLite struct {
	db *sql.DB
}

func NewOutboxRepoSQLite(db *sql.DB) *OutboxRepoSQLite {
	return &OutboxRepoSQLite{db: db}
}

// InitOutbox crea la tabla outbox si no existe.
func InitOutbox(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS outbox (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            id TEXT NOT NULL UNIQUE,
            aggregate_type TEXT NOT NULL,
            aggregate_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            payload TEXT NOT NULL,
            created_at TEXT NOT NULL,
            published INTEGER NOT NULL DEFAULT 0
        )
    `)
	return err
}

// InsertOutboxTx añade eventos dentro de la transacción del llamante, en orden.
// Lo usan los repositorios de agregados para guardar estado y eventos a la vez.
func InsertOutboxTx(ctx context.Context, tx *sql.Tx, events ...domain.OutboxEvent) error {
	for _, evt := range events {
		payloadBytes, err := utils.JSON.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox payload: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (id,aggregate_type,aggregate_id,event_type,payload,created_at,published)
			 VALUES (?,?,?,?,?,?,0)`,
			evt.ID.String(), evt.AggregateType, evt.AggregateID, evt.EventType, string(payloadBytes),
			evt.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event %s: %w", evt.ID, err)
		}
	}
	return nil
}

// Stage guarda eventos que no acompañan a ningún cambio de agregado.
func (r *OutboxRepoSQLite) Stage(ctx context.Context, events ...domain.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := InsertOutboxTx(ctx, tx, events...); err != nil {
		return err
	}
	return tx.Commit()
}

// FetchPendingOutbox devuelve los eventos no publicados en orden de inserción.
// El payload se devuelve en crudo; lo decodifica el registro de eventos.
func (r *OutboxRepoSQLite) FetchPendingOutbox(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox
		 WHERE published = 0
		 ORDER BY seq
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var idStr, aggregateType, aggregateID, eventType, payloadStr, createdAtStr string
		if err := rows.Scan(&idStr, &aggregateType, &aggregateID, &eventType, &payloadStr, &createdAtStr); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at in outbox row %s: %w", parsedID, err)
		}

		events = append(events, domain.OutboxEvent{
			ID:            parsedID,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     eventType,
			Payload:       json.RawMessage(payloadStr),
			CreatedAt:     createdAt,
		})
	}

	return events, rows.Err()
}

// MarkOutboxPublished marca el lote en una sola sentencia.
func (r *OutboxRepoSQLite) MarkOutboxPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE outbox SET published = 1 WHERE id IN (%s)`, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox batch as published: %w", err)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ domain.OutboxRepository = (*OutboxRepoSQLite)(nil)
