package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
)

type namedSubscriber struct {
	name string
	sub  sharedBus.Subscriber
}

// ForwardingPublisher reparte cada evento entre los suscriptores registrados y
// espera a todos. Cada suscriptor corre en su propia goroutine bajo el mismo plazo:
// uno lento o fallido no impide la entrega al resto, pero sí marca el reenvío
// completo como fallido para que el relayer lo reintente.
type ForwardingPublisher struct {
	mu          sync.RWMutex
	subscribers []namedSubscriber
	log         *zap.Logger
}

var _ sharedBus.EventBus = (*ForwardingPublisher)(nil)

func NewForwardingPublisher(log *zap.Logger) *ForwardingPublisher {
	return &ForwardingPublisher{log: log}
}

// Subscribe registra un suscriptor. El nombre solo se usa en logs y errores.
func (p *ForwardingPublisher) Subscribe(name string, sub sharedBus.Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, namedSubscriber{name: name, sub: sub})
}

func (p *ForwardingPublisher) Publish(ctx context.Context, event sharedDomain.DomainEvent) error {
	p.mu.RLock()
	subs := make([]namedSubscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.RUnlock()

	results := make([]error, len(subs))
	var wg sync.WaitGroup
	for i, s := range subs {
		wg.Add(1)
		go func(i int, s namedSubscriber) {
			defer wg.Done()
			results[i] = p.deliver(ctx, s, event)
		}(i, s)
	}
	wg.Wait()

	var errs error
	for i, s := range subs {
		if err := results[i]; err != nil {
			p.log.Warn("⚠️ Suscriptor falló al procesar evento",
				zap.String("subscriber", s.name),
				zap.String("event_id", event.EventID().String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("subscriber %s: %w", s.name, err))
		}
	}
	return errs
}

// deliver aísla al suscriptor: recupera pánicos y deja de esperar cuando vence el contexto.
func (p *ForwardingPublisher) deliver(ctx context.Context, s namedSubscriber, event sharedDomain.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- s.sub.Handle(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
