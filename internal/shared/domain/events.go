package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent es un hecho inmutable emitido por un agregado.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	OccurredAt() time.Time
	EventType() string
}

// EventMeta agrupa los campos comunes a todos los eventos.
type EventMeta struct {
	ID   uuid.UUID `json:"event_id"`
	When time.Time `json:"when"`
}

func NewEventMeta(when time.Time) EventMeta {
	return EventMeta{ID: uuid.New(), When: when.UTC()}
}

func (m EventMeta) EventID() uuid.UUID    { return m.ID }
func (m EventMeta) OccurredAt() time.Time { return m.When }
