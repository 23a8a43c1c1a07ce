package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
	"github.com/davicafu/lendinglab/tests/mocks"
)

const testEventType = "test.hold_placed"

type holdPlaced struct {
	sharedDomain.EventMeta
	PatronID uuid.UUID `json:"patron_id"`
}

func (e holdPlaced) AggregateID() uuid.UUID { return e.PatronID }
func (e holdPlaced) EventType() string      { return testEventType }

func testRegistry() sharedDomainEvents.Registry {
	return sharedDomainEvents.Registry{
		testEventType: {Type: reflect.TypeOf(holdPlaced{}), Topic: "test"},
	}
}

func newOutboxEvent(t *testing.T) sharedDomain.OutboxEvent {
	evt := holdPlaced{EventMeta: sharedDomain.NewEventMeta(time.Now()), PatronID: uuid.New()}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)

	out := sharedDomain.NewOutboxEvent("patron", evt)
	out.Payload = json.RawMessage(raw) // así llega desde la base de datos
	return out
}

func withID(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(e sharedDomain.DomainEvent) bool { return e.EventID() == id })
}

func idsOf(events ...sharedDomain.OutboxEvent) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func newWorker(repo *mocks.MockOutboxRepository, pub *mocks.MockPublisher, opts ...Option) *Worker {
	return NewOutboxWorker(repo, pub, testRegistry(), Config{
		Interval:       10 * time.Millisecond,
		BatchSize:      10,
		ForwardTimeout: 50 * time.Millisecond,
	}, zap.NewNop(), opts...)
}

func TestProcessBatch_Success(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	e1, e2 := newOutboxEvent(t), newOutboxEvent(t)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1, e2}, nil).Once()
	pub.On("Publish", mock.Anything, withID(e1.ID)).Return(nil).Once()
	pub.On("Publish", mock.Anything, withID(e2.ID)).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1, e2)).Return(nil).Once()

	n, err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestProcessBatch_DecodesTypedEvent(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)
	e1 := newOutboxEvent(t)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1}, nil).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e sharedDomain.DomainEvent) bool {
		_, ok := e.(holdPlaced)
		return ok
	})).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1)).Return(nil).Once()

	_, err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestProcessBatch_EmptyOutboxMarksNothing(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil).Once()

	n, err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	assert.Zero(t, n)
	repo.AssertNotCalled(t, "MarkOutboxPublished", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessBatch_FetchError(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return(nil, errors.New("db down")).Once()

	_, err := worker.ProcessBatch(context.Background())

	assert.Error(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkOutboxPublished", mock.Anything, mock.Anything)
}

func TestProcessBatch_UnknownEventTypeFailsTheBatch(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	e1 := newOutboxEvent(t)
	e1.EventType = "unknown.event"
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1}, nil).Once()

	_, err := worker.ProcessBatch(context.Background())

	assert.Error(t, err)
	repo.AssertNotCalled(t, "MarkOutboxPublished", mock.Anything, mock.Anything)
}

// Tres eventos pendientes: el tercero agota el timeout. No se marca ninguno y el
// siguiente tick reintenta los tres.
func TestProcessBatch_TimeoutRetriesWholeBatchNextTick(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	e1, e2, e3 := newOutboxEvent(t), newOutboxEvent(t), newOutboxEvent(t)
	batch := []sharedDomain.OutboxEvent{e1, e2, e3}

	// Primer tick
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return(batch, nil).Twice()
	pub.On("Publish", mock.Anything, withID(e1.ID)).Return(nil).Twice()
	pub.On("Publish", mock.Anything, withID(e2.ID)).Return(nil).Twice()
	pub.On("Publish", mock.Anything, withID(e3.ID)).Return(context.DeadlineExceeded).Once()

	n, err := worker.ProcessBatch(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, n)
	repo.AssertNotCalled(t, "MarkOutboxPublished", mock.Anything, mock.Anything)

	// Segundo tick: el suscriptor ya responde
	pub.On("Publish", mock.Anything, withID(e3.ID)).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1, e2, e3)).Return(nil).Once()

	n, err = worker.ProcessBatch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestProcessBatch_AppliesForwardTimeout(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)
	e1 := newOutboxEvent(t)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1}, nil).Once()
	pub.On("Publish", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), withID(e1.ID)).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1)).Return(nil).Once()

	_, err := worker.ProcessBatch(context.Background())

	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestProcessBatch_MarkErrorIsReported(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)
	e1 := newOutboxEvent(t)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1}, nil).Once()
	pub.On("Publish", mock.Anything, withID(e1.ID)).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1)).Return(errors.New("db error")).Once()

	_, err := worker.ProcessBatch(context.Background())

	assert.Error(t, err)
}

func TestProcessBatch_SingleFlight(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)
	e1 := newOutboxEvent(t)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{e1}, nil).Once()
	pub.On("Publish", mock.Anything, withID(e1.ID)).Run(func(mock.Arguments) {
		close(entered)
		<-unblock
	}).Return(nil).Once()
	repo.On("MarkOutboxPublished", mock.Anything, idsOf(e1)).Return(nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := worker.ProcessBatch(context.Background())
		assert.NoError(t, err)
	}()

	<-entered
	_, err := worker.ProcessBatch(context.Background())
	assert.ErrorIs(t, err, ErrDrainInProgress)

	close(unblock)
	wg.Wait()
	repo.AssertNumberOfCalls(t, "FetchPendingOutbox", 1)
}

func TestProcessBatch_SkipsWhenDrainLockIsHeldElsewhere(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	shared := sharedLock.NewLocalLock()
	release, err := shared.TryAcquire(context.Background())
	require.NoError(t, err)
	defer release(context.Background())

	worker := newWorker(repo, pub, WithDrainLock(shared))

	_, err = worker.ProcessBatch(context.Background())

	assert.ErrorIs(t, err, ErrDrainInProgress)
	repo.AssertNotCalled(t, "FetchPendingOutbox", mock.Anything, mock.Anything)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	repo := new(mocks.MockOutboxRepository)
	pub := new(mocks.MockPublisher)
	worker := newWorker(repo, pub)

	repo.On("FetchPendingOutbox", mock.Anything, 10).Return([]sharedDomain.OutboxEvent{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el worker no se detuvo")
	}
}
