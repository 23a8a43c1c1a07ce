package events

import (
	"fmt"
	"reflect"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// EventMetadata asocia un tipo de evento a su tipo Go y al topic donde se publica.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}

// Registry indexa los eventos por su nombre (EventType).
type Registry map[string]EventMetadata

// Merge combina los registros de cada contexto en uno solo.
func Merge(registries ...Registry) Registry {
	out := make(Registry)
	for _, r := range registries {
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}

// Decode reconstruye el evento tipado a partir del payload guardado en outbox.
func (r Registry) Decode(eventType string, payload interface{}) (sharedDomain.DomainEvent, error) {
	metadata, ok := r[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	ptr := reflect.New(metadata.Type)
	raw, err := utils.JSON.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := utils.JSON.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}

	evt, ok := ptr.Elem().Interface().(sharedDomain.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("registered type %s is not a domain event", metadata.Type)
	}
	return evt, nil
}

// TopicOf devuelve el topic de un tipo de evento, o fallback si no está registrado.
func (r Registry) TopicOf(eventType, fallback string) string {
	if metadata, ok := r[eventType]; ok && metadata.Topic != "" {
		return metadata.Topic
	}
	return fallback
}
