package events

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	sharedEvents "github.com/davicafu/lendinglab/internal/shared/events"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// KafkaPublisher es un suscriptor más del ForwardingPublisher: reenvía cada evento
// a Kafka dentro de un IntegrationEvent, con el agregado como clave de partición.
type KafkaPublisher struct {
	writer       *kafka.Writer
	registry     sharedDomainEvents.Registry
	defaultTopic string
	log          *zap.Logger
}

var _ sharedBus.Subscriber = (*KafkaPublisher)(nil)

// NewKafkaPublisher espera un writer sin Topic fijo: el topic sale del registro de eventos.
func NewKafkaPublisher(writer *kafka.Writer, registry sharedDomainEvents.Registry, defaultTopic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, registry: registry, defaultTopic: defaultTopic, log: log}
}

func (p *KafkaPublisher) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	envelope, err := sharedEvents.NewIntegrationEvent(event)
	if err != nil {
		return err
	}
	data, err := utils.JSON.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.registry.TopicOf(event.EventType(), p.defaultTopic),
		Key:   []byte(event.AggregateID().String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID().String())},
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.String("topic", msg.Topic), zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully",
		zap.String("topic", msg.Topic),
		zap.String("event_id", event.EventID().String()))
	return nil
}
