package bus

import (
	"context"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// EventBus entrega un evento ya decodificado. La semántica de topic/nombre y el
// formato del payload la deciden los adapters.
type EventBus interface {
	Publish(ctx context.Context, event sharedDomain.DomainEvent) error
}

// Subscriber recibe eventos reenviados. La entrega es at-least-once: la
// implementación debe ser idempotente respecto a EventID().
type Subscriber interface {
	Handle(ctx context.Context, event sharedDomain.DomainEvent) error
}

// SubscriberFunc adapta una función a Subscriber.
type SubscriberFunc func(ctx context.Context, event sharedDomain.DomainEvent) error

func (f SubscriberFunc) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	return f(ctx, event)
}
