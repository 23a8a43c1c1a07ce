package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/lendinglab/internal/shared/infra/platform/cache"
)

// IdempotentSubscriber descarta eventos cuyo eventId ya fue procesado con éxito
// por el suscriptor envuelto. El registro se escribe solo tras un Handle sin error,
// de modo que un fallo deja el evento disponible para el reintento.
type IdempotentSubscriber struct {
	name  string
	next  sharedBus.Subscriber
	cache sharedCache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

var _ sharedBus.Subscriber = (*IdempotentSubscriber)(nil)

func NewIdempotentSubscriber(name string, next sharedBus.Subscriber, cache sharedCache.Cache, ttl time.Duration, log *zap.Logger) *IdempotentSubscriber {
	return &IdempotentSubscriber{name: name, next: next, cache: cache, ttl: ttl, log: log}
}

func (s *IdempotentSubscriber) key(event sharedDomain.DomainEvent) string {
	return fmt.Sprintf("processed:%s:%s", s.name, event.EventID())
}

func (s *IdempotentSubscriber) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	seen, err := s.cache.Exists(ctx, s.key(event))
	if err != nil {
		// Sin caché seguimos: el suscriptor también tolera duplicados.
		s.log.Warn("Idempotency lookup failed", zap.String("subscriber", s.name), zap.Error(err))
	}
	if seen {
		s.log.Debug("Duplicate event skipped",
			zap.String("subscriber", s.name),
			zap.String("event_id", event.EventID().String()))
		return nil
	}

	if err := s.next.Handle(ctx, event); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, s.key(event), true, s.ttl); err != nil {
		s.log.Warn("Idempotency mark failed", zap.String("subscriber", s.name), zap.Error(err))
	}
	return nil
}
