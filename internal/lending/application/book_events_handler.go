package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	"github.com/davicafu/lendinglab/internal/shared/clock"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// BookEventsHandler aplica los eventos de lectores sobre los libros.
// La entrega es at-least-once: un evento que el libro ya refleja se confirma sin cambios.
type BookEventsHandler struct {
	books  domain.BookRepository
	outbox sharedDomain.OutboxRepository
	clock  clock.Clock
	log    *zap.Logger
}

var _ sharedBus.Subscriber = (*BookEventsHandler)(nil)

func NewBookEventsHandler(books domain.BookRepository, outbox sharedDomain.OutboxRepository, clk clock.Clock, log *zap.Logger) *BookEventsHandler {
	return &BookEventsHandler{books: books, outbox: outbox, clock: clk, log: log}
}

func (h *BookEventsHandler) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	var bookID domain.BookID
	var decide func(book domain.Book) (bool, error)

	switch e := event.(type) {
	case domain.BookPlacedOnHold:
		bookID = e.BookID
		decide = func(book domain.Book) (bool, error) { return h.onPlacedOnHold(ctx, book, e) }
	case domain.BookHoldCanceled:
		bookID = e.BookID
		decide = func(book domain.Book) (bool, error) { return heldBy(book, e.PatronID), nil }
	case domain.BookHoldExpired:
		bookID = e.BookID
		decide = func(book domain.Book) (bool, error) { return heldBy(book, e.PatronID), nil }
	case domain.BookCheckedOut:
		bookID = e.BookID
		decide = func(book domain.Book) (bool, error) { return h.onCheckedOut(ctx, book, e) }
	case domain.BookReturned:
		bookID = e.BookID
		decide = func(book domain.Book) (bool, error) {
			if checkedOut, ok := book.AsCheckedOut(); ok && checkedOut.By(e.PatronID) {
				return true, nil
			}
			return heldBy(book, e.PatronID), nil
		}
	default:
		return nil
	}

	return utils.RetryOnConflict(ctx, conflictAttempts, conflictDelay, func() error {
		book, err := h.books.FindByID(ctx, bookID)
		if err != nil {
			return err
		}

		apply, err := decide(book)
		if err != nil {
			return err
		}
		if !apply {
			h.log.Debug("Event already reflected or not applicable, skipping",
				zap.String("event_type", event.EventType()),
				zap.String("book_id", bookID.String()),
				zap.String("state", string(book.State)))
			return nil
		}

		next, err := domain.Apply(book, event)
		if err != nil {
			h.log.Error("❌ Transición de libro no definida",
				zap.String("event_id", event.EventID().String()),
				zap.String("event_type", event.EventType()),
				zap.String("book_id", bookID.String()),
				zap.Error(err))
			return err
		}
		return h.books.Save(ctx, next)
	})
}

// onPlacedOnHold detecta reservas duplicadas: si otro lector ya tiene el libro,
// registra BookDuplicateHoldFound y no toca el libro.
func (h *BookEventsHandler) onPlacedOnHold(ctx context.Context, book domain.Book, e domain.BookPlacedOnHold) (bool, error) {
	onHold, ok := book.AsOnHold()
	if !ok {
		return true, nil
	}
	if onHold.By(e.PatronID) {
		return false, nil
	}

	duplicate := domain.NewBookDuplicateHoldFound(onHold.ByPatron, e.PatronID, e.LibraryBranchID, e.BookID, h.clock.Now())
	h.log.Warn("⚠️ Reserva duplicada detectada",
		zap.String("book_id", e.BookID.String()),
		zap.String("first_patron", onHold.ByPatron.String()),
		zap.String("second_patron", e.PatronID.String()))
	return false, h.outbox.Stage(ctx, sharedDomain.NewOutboxEvent(domain.BookAggregate, duplicate))
}

// onCheckedOut solo presta un libro reservado al mismo lector. Si la reserva es de
// otro, el préstamo salió de una reserva duplicada: el libro sigue con su titular y
// se registra BookDuplicateHoldFound. El resto de variantes llega a Apply, que
// falla con una transición no definida.
func (h *BookEventsHandler) onCheckedOut(ctx context.Context, book domain.Book, e domain.BookCheckedOut) (bool, error) {
	if checkedOut, ok := book.AsCheckedOut(); ok && checkedOut.By(e.PatronID) {
		return false, nil
	}
	onHold, ok := book.AsOnHold()
	if !ok || onHold.By(e.PatronID) {
		return true, nil
	}

	duplicate := domain.NewBookDuplicateHoldFound(onHold.ByPatron, e.PatronID, e.LibraryBranchID, e.BookID, h.clock.Now())
	h.log.Warn("⚠️ Préstamo sobre un libro reservado por otro lector",
		zap.String("book_id", e.BookID.String()),
		zap.String("holder", onHold.ByPatron.String()),
		zap.String("patron_id", e.PatronID.String()))
	return false, h.outbox.Stage(ctx, sharedDomain.NewOutboxEvent(domain.BookAggregate, duplicate))
}

func heldBy(book domain.Book, patronID domain.PatronID) bool {
	onHold, ok := book.AsOnHold()
	return ok && onHold.By(patronID)
}

// PatronEventsHandler reacciona a los eventos del lado del libro que afectan a lectores.
type PatronEventsHandler struct {
	service *LendingService
}

var _ sharedBus.Subscriber = (*PatronEventsHandler)(nil)

func NewPatronEventsHandler(service *LendingService) *PatronEventsHandler {
	return &PatronEventsHandler{service: service}
}

func (h *PatronEventsHandler) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	if e, ok := event.(domain.BookDuplicateHoldFound); ok {
		return h.service.CancelDuplicateHold(ctx, e)
	}
	return nil
}
