package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// IntegrationEvent es el sobre con el que los eventos salen del proceso.
type IntegrationEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"` // contenido específico del evento
}

// NewIntegrationEvent serializa el evento de dominio dentro del sobre.
func NewIntegrationEvent(evt sharedDomain.DomainEvent) (IntegrationEvent, error) {
	data, err := utils.JSON.Marshal(evt)
	if err != nil {
		return IntegrationEvent{}, err
	}
	return IntegrationEvent{
		ID:          evt.EventID(),
		Type:        evt.EventType(),
		AggregateID: evt.AggregateID().String(),
		Timestamp:   evt.OccurredAt(),
		Data:        data,
	}, nil
}
