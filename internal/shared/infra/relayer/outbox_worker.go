package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedDomainEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	sharedLock "github.com/davicafu/lendinglab/internal/shared/infra/platform/lock"
)

// ErrDrainInProgress se devuelve cuando un tick encuentra otro ciclo aún en marcha.
var ErrDrainInProgress = errors.New("outbox drain already in progress")

// Config agrupa los parámetros del worker.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	ForwardTimeout time.Duration
}

// Option configura dependencias opcionales del worker.
type Option func(*Worker)

// WithDrainLock añade un lock compartido entre réplicas (p. ej. Redis).
func WithDrainLock(l sharedLock.DrainLock) Option {
	return func(w *Worker) { w.lock = l }
}

// WithTracer sustituye el tracer global de OpenTelemetry.
func WithTracer(t trace.Tracer) Option {
	return func(w *Worker) { w.tracer = t }
}

// Worker drena el outbox periódicamente (store-and-forward).
// Un lote solo se marca como publicado si todos sus eventos se reenviaron sin error;
// en caso contrario se reintenta entero en el siguiente tick.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry sharedDomainEvents.Registry
	cfg           Config
	lock          sharedLock.DrainLock
	draining      atomic.Bool
	tracer        trace.Tracer
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry sharedDomainEvents.Registry,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = 5 * time.Second
	}

	w := &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		cfg:           cfg,
		tracer:        otel.Tracer("lendinglab/relayer"),
		log:           log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start inicia el bucle de polling del worker. Bloquea hasta que ctx se cancela.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			// Se lanza en su propia goroutine para que un ciclo lento no retrase
			// el ticker; el guard single-flight descarta los solapes.
			go func() {
				if _, err := w.ProcessBatch(ctx); err != nil && !errors.Is(err, ErrDrainInProgress) {
					w.log.Warn("⚠️ Ciclo de outbox fallido, se reintentará", zap.Error(err))
				}
			}()
		}
	}
}

// ProcessBatch ejecuta un ciclo de drenado y devuelve cuántos eventos quedaron publicados.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	if !w.draining.CompareAndSwap(false, true) {
		w.log.Debug("⏭️ Drenado en curso, se omite el tick")
		return 0, ErrDrainInProgress
	}
	defer w.draining.Store(false)

	if w.lock != nil {
		release, err := w.lock.TryAcquire(ctx)
		if errors.Is(err, sharedLock.ErrNotAcquired) {
			w.log.Debug("⏭️ Otra réplica está drenando el outbox")
			return 0, ErrDrainInProgress
		}
		if err != nil {
			return 0, fmt.Errorf("acquire drain lock: %w", err)
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				w.log.Warn("⚠️ No se pudo liberar el lock de drenado", zap.Error(err))
			}
		}()
	}

	ctx, span := w.tracer.Start(ctx, "outbox.drain",
		trace.WithAttributes(attribute.Int("outbox.batch_size", w.cfg.BatchSize)))
	defer span.End()

	events, err := w.repo.FetchPendingOutbox(ctx, w.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch pending")
		return 0, fmt.Errorf("fetch pending outbox: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("outbox.fetched", len(events)))
	w.log.Info(fmt.Sprintf("📬 %d eventos encontrados para procesar", len(events)))

	ids := make([]uuid.UUID, 0, len(events))
	for _, evt := range events {
		if err := w.forward(ctx, evt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "forward")
			w.log.Warn("⚠️ No se pudo reenviar evento, el lote se reintentará",
				zap.String("event_id", evt.ID.String()),
				zap.String("event_type", evt.EventType),
				zap.Error(err),
			)
			return 0, fmt.Errorf("forward event %s: %w", evt.ID, err)
		}
		ids = append(ids, evt.ID)
	}

	if err := w.repo.MarkOutboxPublished(ctx, ids); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark published")
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}

	w.log.Info("✅ Lote publicado y marcado", zap.Int("count", len(ids)))
	return len(ids), nil
}

func (w *Worker) forward(ctx context.Context, evt sharedDomain.OutboxEvent) error {
	// 1. Usar el registro para decodificar el payload al tipo de evento correcto
	domainEvent, err := w.eventRegistry.Decode(evt.EventType, evt.Payload)
	if err != nil {
		return err
	}

	// 2. Publicar con timeout propio: un suscriptor lento no bloquea el outbox
	fctx, cancel := context.WithTimeout(ctx, w.cfg.ForwardTimeout)
	defer cancel()
	return w.publisher.Publish(fctx, domainEvent)
}
