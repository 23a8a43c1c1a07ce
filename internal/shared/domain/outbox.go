package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar.
// El ID coincide con el eventId del evento de dominio: es la clave de idempotencia
// que ven los consumidores en cada reentrega.
type OutboxEvent struct {
	ID            uuid.UUID   `json:"id"`
	AggregateType string      `json:"aggregate_type"` // ej. "patron", "book"
	AggregateID   string      `json:"aggregate_id"`
	EventType     string      `json:"event_type"` // ej. "lending.book_placed_on_hold"
	Payload       interface{} `json:"payload"`    // JSON serializable
	CreatedAt     time.Time   `json:"created_at"`
	Published     bool        `json:"published"`
}

// NewOutboxEvent envuelve un evento de dominio en un registro de outbox sin publicar.
func NewOutboxEvent(aggregateType string, evt DomainEvent) OutboxEvent {
	return OutboxEvent{
		ID:            evt.EventID(),
		AggregateType: aggregateType,
		AggregateID:   evt.AggregateID().String(),
		EventType:     evt.EventType(),
		Payload:       evt,
		CreatedAt:     evt.OccurredAt().UTC(),
	}
}

// OutboxEvents convierte una secuencia de eventos conservando el orden de emisión.
func OutboxEvents[E DomainEvent](aggregateType string, evts ...E) []OutboxEvent {
	out := make([]OutboxEvent, 0, len(evts))
	for _, evt := range evts {
		out = append(out, NewOutboxEvent(aggregateType, evt))
	}
	return out
}

// OutboxRepository define el contrato para acceder a la tabla outbox.
// La escritura junto a un agregado la hacen los repositorios de cada agregado
// dentro de su propia transacción; aquí solo queda lo que necesitan el relayer
// y los comandos que no modifican ningún agregado.
type OutboxRepository interface {
	// Stage añade eventos sin publicar, en orden, en una única transacción.
	Stage(ctx context.Context, events ...OutboxEvent) error

	// FetchPendingOutbox devuelve hasta limit eventos no publicados en orden de inserción.
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkOutboxPublished marca el lote completo como publicado.
	MarkOutboxPublished(ctx context.Context, ids []uuid.UUID) error
}
