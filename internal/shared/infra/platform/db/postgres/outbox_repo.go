package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// OutboxRepoPostgres implementa sharedDomain.OutboxRepository sobre Postgres.
type OutboxRepoPostgres struct {
	db *sql.DB
}

func NewOutboxRepoPostgres(db *sql.DB) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db}
}

// InitOutbox crea la tabla outbox si no existe.
func InitOutbox(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outbox (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published BOOLEAN NOT NULL DEFAULT false
		);
		CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (seq) WHERE NOT published;
	`)
	return err
}

// InsertOutboxTx añade eventos dentro de la transacción del llamante, en orden.
func InsertOutboxTx(ctx context.Context, tx *sql.Tx, events ...sharedDomain.OutboxEvent) error {
	for _, evt := range events {
		payloadBytes, err := utils.JSON.Marshal(evt.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal outbox payload: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, payloadBytes, evt.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event %s: %w", evt.ID, err)
		}
	}
	return nil
}

func (r *OutboxRepoPostgres) Stage(ctx context.Context, events ...sharedDomain.OutboxEvent) error {
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

// FetchPendingOutbox obtiene los eventos no publicados por orden de seq.
func (r *OutboxRepoPostgres) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		 FROM outbox WHERE published = false ORDER BY seq LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []sharedDomain.OutboxEvent
	for rows.Next() {
		var evt sharedDomain.OutboxEvent
		var payloadBytes []byte

		if err := rows.Scan(&evt.ID, &evt.AggregateType, &evt.AggregateID, &evt.EventType, &payloadBytes, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Payload = json.RawMessage(payloadBytes)
		events = append(events, evt)
	}

	return events, rows.Err()
}

// MarkOutboxPublished marca el lote completo en una sentencia.
func (r *OutboxRepoPostgres) MarkOutboxPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET published = true WHERE id = ANY($1::uuid[])`, strIDs,
	); err != nil {
		return fmt.Errorf("failed to mark outbox batch as published: %w", err)
	}
	return nil
}

// Verificación en tiempo de compilación.
var _ sharedDomain.OutboxRepository = (*OutboxRepoPostgres)(nil)
