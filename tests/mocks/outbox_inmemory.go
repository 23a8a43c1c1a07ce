package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// InMemoryOutbox guarda eventos en orden de inserción. Los repos en memoria
// escriben aquí bajo el mismo lock que el agregado, igual que una transacción.
type InMemoryOutbox struct {
	mu     sync.Mutex
	events []sharedDomain.OutboxEvent
}

var _ sharedDomain.OutboxRepository = (*InMemoryOutbox)(nil)

func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{}
}

func (o *InMemoryOutbox) Stage(ctx context.Context, events ...sharedDomain.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
	return nil
}

func (o *InMemoryOutbox) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []sharedDomain.OutboxEvent
	for _, evt := range o.events {
		if len(out) == limit {
			break
		}
		if !evt.Published {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (o *InMemoryOutbox) MarkOutboxPublished(ctx context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range o.events {
		if _, ok := set[o.events[i].ID]; ok {
			o.events[i].Published = true
		}
	}
	return nil
}

// All devuelve una copia de todos los eventos (para asserts).
func (o *InMemoryOutbox) All() []sharedDomain.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sharedDomain.OutboxEvent(nil), o.events...)
}

// Types devuelve los EventType en orden (para asserts).
func (o *InMemoryOutbox) Types() []string {
	var out []string
	for _, evt := range o.All() {
		out = append(out, evt.EventType)
	}
	return out
}
