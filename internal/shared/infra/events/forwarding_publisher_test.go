package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/lendinglab/internal/shared/infra/platform/cache"
)

type pingEvent struct {
	sharedDomain.EventMeta
	Aggregate uuid.UUID `json:"aggregate"`
}

func (e pingEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e pingEvent) EventType() string      { return "test.ping" }

func newPing() pingEvent {
	return pingEvent{EventMeta: sharedDomain.NewEventMeta(time.Now()), Aggregate: uuid.New()}
}

func countingSubscriber(counter *int32, err error) sharedBus.Subscriber {
	return sharedBus.SubscriberFunc(func(ctx context.Context, _ sharedDomain.DomainEvent) error {
		atomic.AddInt32(counter, 1)
		return err
	})
}

func TestForwardingPublisher_DeliversToEverySubscriber(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	var a, b int32
	p.Subscribe("a", countingSubscriber(&a, nil))
	p.Subscribe("b", countingSubscriber(&b, nil))

	err := p.Publish(context.Background(), newPing())

	assert.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&a))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b))
}

func TestForwardingPublisher_NoSubscribersIsASuccess(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), newPing()))
}

func TestForwardingPublisher_FailingSubscriberDoesNotStopOthers(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	boom := errors.New("boom")
	var first, second int32
	p.Subscribe("failing", countingSubscriber(&first, boom))
	p.Subscribe("healthy", countingSubscriber(&second, nil))

	err := p.Publish(context.Background(), newPing())

	assert.ErrorIs(t, err, boom, "el fallo marca el reenvío como fallido")
	assert.Equal(t, int32(1), atomic.LoadInt32(&second), "el segundo suscriptor recibe el evento igualmente")
}

func TestForwardingPublisher_PanicIsIsolated(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	var healthy int32
	p.Subscribe("panicking", sharedBus.SubscriberFunc(func(context.Context, sharedDomain.DomainEvent) error {
		panic("subscriber bug")
	}))
	p.Subscribe("healthy", countingSubscriber(&healthy, nil))

	err := p.Publish(context.Background(), newPing())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "subscriber bug")
	assert.Equal(t, int32(1), atomic.LoadInt32(&healthy))
}

func TestForwardingPublisher_UnresponsiveSubscriberTimesOut(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	release := make(chan struct{})
	defer close(release)
	p.Subscribe("stuck", sharedBus.SubscriberFunc(func(context.Context, sharedDomain.DomainEvent) error {
		<-release // ignora el contexto a propósito
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, newPing())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForwardingPublisher_SlowSubscriberDoesNotStarveLaterOnes(t *testing.T) {
	p := NewForwardingPublisher(zap.NewNop())
	release := make(chan struct{})
	defer close(release)
	p.Subscribe("slow", sharedBus.SubscriberFunc(func(context.Context, sharedDomain.DomainEvent) error {
		<-release
		return nil
	}))
	var fast int32
	p.Subscribe("fast", countingSubscriber(&fast, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Publish(ctx, newPing())

	assert.ErrorIs(t, err, context.DeadlineExceeded, "el lento sigue marcando el reenvío como fallido")
	assert.Contains(t, err.Error(), "subscriber slow")
	assert.NotContains(t, err.Error(), "subscriber fast")
	assert.Equal(t, int32(1), atomic.LoadInt32(&fast), "el rápido recibe el evento aunque vaya detrás")
}

func TestIdempotentSubscriber_SkipsAlreadyProcessedEvent(t *testing.T) {
	c := sharedCache.NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	var calls int32
	sub := NewIdempotentSubscriber("books", countingSubscriber(&calls, nil), c, time.Hour, zap.NewNop())
	evt := newPing()

	assert.NoError(t, sub.Handle(context.Background(), evt))
	assert.NoError(t, sub.Handle(context.Background(), evt))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotentSubscriber_FailureIsNotRemembered(t *testing.T) {
	c := sharedCache.NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	var calls int32
	boom := errors.New("boom")
	sub := NewIdempotentSubscriber("books", countingSubscriber(&calls, boom), c, time.Hour, zap.NewNop())
	evt := newPing()

	assert.ErrorIs(t, sub.Handle(context.Background(), evt), boom)
	assert.ErrorIs(t, sub.Handle(context.Background(), evt), boom)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
