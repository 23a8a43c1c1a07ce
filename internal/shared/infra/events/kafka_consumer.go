package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedDomainEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	sharedEvents "github.com/davicafu/lendinglab/internal/shared/events"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

const defaultConsumerRetryDelay = time.Second

// MessageReader es la parte de *kafka.Reader que usa el consumidor.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConsumer es el "oído" que escucha en Kafka: decodifica cada IntegrationEvent
// con el registro y lo entrega a un Subscriber. El offset se confirma solo cuando
// el subscriber termina sin error, así que la entrega es at-least-once.
type KafkaConsumer struct {
	reader     MessageReader
	registry   sharedDomainEvents.Registry
	handler    sharedBus.Subscriber
	retryDelay time.Duration
	log        *zap.Logger
}

type ConsumerOption func(*KafkaConsumer)

// WithRetryDelay fija la espera entre reintentos de un mensaje fallido.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(c *KafkaConsumer) { c.retryDelay = d }
}

func NewKafkaConsumer(reader MessageReader, registry sharedDomainEvents.Registry, handler sharedBus.Subscriber, log *zap.Logger, opts ...ConsumerOption) *KafkaConsumer {
	c := &KafkaConsumer{
		reader:     reader,
		registry:   registry,
		handler:    handler,
		retryDelay: defaultConsumerRetryDelay,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consume hasta que se cancela el contexto.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.log.Info("🎧 Iniciando consumidor de Kafka...")

	for {
		// FetchMessage es bloqueante y no confirma el offset.
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumidor de Kafka detenido.")
				return nil
			}
			c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			continue
		}

		for {
			err := c.handle(ctx, msg)
			if err == nil {
				break
			}
			c.log.Warn("⚠️ Fallo procesando mensaje, reintentando",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("Error al confirmar offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle devuelve error solo cuando merece reintento. Los mensajes ilegibles o de
// tipos desconocidos se descartan: reintentarlos no cambia el resultado.
func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var envelope sharedEvents.IntegrationEvent
	if err := utils.JSON.Unmarshal(msg.Value, &envelope); err != nil {
		c.log.Error("❌ Mensaje ilegible descartado", zap.String("topic", msg.Topic), zap.Error(err))
		return nil
	}

	if _, known := c.registry[envelope.Type]; !known {
		c.log.Debug("Evento ignorado", zap.String("type", envelope.Type))
		return nil
	}

	event, err := c.registry.Decode(envelope.Type, envelope.Data)
	if err != nil {
		c.log.Error("❌ Evento no decodificable descartado",
			zap.String("type", envelope.Type),
			zap.String("event_id", envelope.ID.String()),
			zap.Error(err))
		return nil
	}

	return c.handler.Handle(ctx, event)
}
