package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	"github.com/davicafu/lendinglab/internal/shared/clock"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// ErrCommandRejected agrupa los rechazos de negocio (políticas, reservas ajenas).
var ErrCommandRejected = errors.New("command rejected")

// RejectionError lleva el motivo del rechazo; el evento de fallo ya quedó en outbox.
type RejectionError struct {
	EventType string
	Reason    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCommandRejected, e.Reason)
}

func (e *RejectionError) Unwrap() error { return ErrCommandRejected }

const (
	conflictAttempts = 3
	conflictDelay    = 20 * time.Millisecond
)

// LendingService orquesta los comandos de préstamo: cargar, decidir, aplicar y guardar
// junto a los eventos emitidos.
type LendingService struct {
	patrons domain.PatronRepository
	books   domain.BookRepository
	outbox  sharedDomain.OutboxRepository
	sheet   domain.DailySheet
	clock   clock.Clock
	log     *zap.Logger
}

func NewLendingService(
	patrons domain.PatronRepository,
	books domain.BookRepository,
	outbox sharedDomain.OutboxRepository,
	sheet domain.DailySheet,
	clk clock.Clock,
	log *zap.Logger,
) *LendingService {
	return &LendingService{
		patrons: patrons,
		books:   books,
		outbox:  outbox,
		sheet:   sheet,
		clock:   clk,
		log:     log,
	}
}

// ---------- Comandos ----------

type PlaceOnHoldCommand struct {
	PatronID domain.PatronID
	BookID   domain.BookID
	// Days nil = reserva abierta.
	Days *int
}

type CheckOutCommand struct {
	PatronID domain.PatronID
	BookID   domain.BookID
	Days     int
}

func (s *LendingService) RegisterPatron(ctx context.Context, patronType domain.PatronType) (domain.Patron, error) {
	if !patronType.Valid() {
		return domain.Patron{}, domain.ErrInvalidPatronType
	}

	info := domain.PatronInformation{PatronID: domain.NewPatronID(), PatronType: patronType}
	patron := domain.NewPatron(info)
	created := domain.NewPatronCreated(info, s.clock.Now())

	if err := s.patrons.Create(ctx, patron, sharedDomain.NewOutboxEvent(domain.PatronAggregate, created)); err != nil {
		return domain.Patron{}, err
	}
	s.log.Info("👤 Lector registrado", zap.String("patron_id", info.PatronID.String()), zap.String("type", string(patronType)))
	return patron, nil
}

func (s *LendingService) GetPatron(ctx context.Context, id domain.PatronID) (domain.Patron, error) {
	return s.patrons.FindByID(ctx, id)
}

func (s *LendingService) GetBook(ctx context.Context, id domain.BookID) (domain.Book, error) {
	return s.books.FindByID(ctx, id)
}

// PlaceOnHold decide la reserva sobre el estado cargado. El libro pasa a OnHold
// cuando BookEventsHandler recibe el evento reenviado.
func (s *LendingService) PlaceOnHold(ctx context.Context, cmd PlaceOnHoldCommand) (domain.BookPlacedOnHoldEvents, error) {
	book, err := s.books.FindByID(ctx, cmd.BookID)
	if err != nil {
		return domain.BookPlacedOnHoldEvents{}, err
	}
	available, ok := book.AsAvailable()
	if !ok {
		return domain.BookPlacedOnHoldEvents{}, domain.ErrBookNotAvailable
	}

	patron, err := s.patrons.FindByID(ctx, cmd.PatronID)
	if err != nil {
		return domain.BookPlacedOnHoldEvents{}, err
	}
	// El libro puede seguir Available porque la reserva propia aún no se ha reenviado.
	if patron.HasHold(cmd.BookID, available.Branch) {
		return domain.BookPlacedOnHoldEvents{}, domain.ErrBookNotAvailable
	}

	now := s.clock.Now()
	duration := domain.OpenEndedHold(now)
	if cmd.Days != nil {
		if duration, err = domain.CloseEndedHold(now, *cmd.Days); err != nil {
			return domain.BookPlacedOnHoldEvents{}, err
		}
	}

	result := patron.PlaceOnHold(available, duration)
	if failed, rejected := result.Failure(); rejected {
		return domain.BookPlacedOnHoldEvents{}, s.reject(ctx, failed, failed.Reason)
	}

	events, _ := result.Success()
	emitted := events.Events()
	if err := s.patrons.Save(ctx, patron.Apply(emitted...), sharedDomain.OutboxEvents(domain.PatronAggregate, emitted...)...); err != nil {
		return domain.BookPlacedOnHoldEvents{}, err
	}

	s.log.Info("📌 Libro reservado",
		zap.String("patron_id", cmd.PatronID.String()),
		zap.String("book_id", cmd.BookID.String()),
		zap.Bool("open_ended", duration.IsOpenEnded()))
	return events, nil
}

func (s *LendingService) CancelHold(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) (domain.BookHoldCanceled, error) {
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		return domain.BookHoldCanceled{}, err
	}
	onHold, ok := book.AsOnHold()
	if !ok {
		return domain.BookHoldCanceled{}, domain.ErrBookNotOnHold
	}

	patron, err := s.patrons.FindByID(ctx, patronID)
	if err != nil {
		return domain.BookHoldCanceled{}, err
	}

	result := patron.CancelHold(onHold, s.clock.Now())
	if failed, rejected := result.Failure(); rejected {
		return domain.BookHoldCanceled{}, s.reject(ctx, failed, domain.ReasonBookNotHeldByPatron)
	}

	canceled, _ := result.Success()
	if err := s.patrons.Save(ctx, patron.Apply(canceled), sharedDomain.NewOutboxEvent(domain.PatronAggregate, canceled)); err != nil {
		return domain.BookHoldCanceled{}, err
	}
	return canceled, nil
}

func (s *LendingService) CheckOut(ctx context.Context, cmd CheckOutCommand) (domain.BookCheckedOut, error) {
	book, err := s.books.FindByID(ctx, cmd.BookID)
	if err != nil {
		return domain.BookCheckedOut{}, err
	}
	onHold, ok := book.AsOnHold()
	if !ok {
		return domain.BookCheckedOut{}, domain.ErrBookNotOnHold
	}

	patron, err := s.patrons.FindByID(ctx, cmd.PatronID)
	if err != nil {
		return domain.BookCheckedOut{}, err
	}

	duration, err := domain.NewCheckoutDuration(s.clock.Now(), cmd.Days)
	if err != nil {
		return domain.BookCheckedOut{}, err
	}

	result := patron.CheckOut(onHold, duration)
	if failed, rejected := result.Failure(); rejected {
		return domain.BookCheckedOut{}, s.reject(ctx, failed, failed.Reason)
	}

	checkedOut, _ := result.Success()
	if err := s.patrons.Save(ctx, patron.Apply(checkedOut), sharedDomain.NewOutboxEvent(domain.PatronAggregate, checkedOut)); err != nil {
		return domain.BookCheckedOut{}, err
	}
	s.log.Info("📚 Libro prestado",
		zap.String("patron_id", cmd.PatronID.String()),
		zap.String("book_id", cmd.BookID.String()),
		zap.Time("till", checkedOut.Till))
	return checkedOut, nil
}

// ReturnBook registra la devolución de un libro prestado al propio lector.
func (s *LendingService) ReturnBook(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) (domain.BookReturned, error) {
	book, err := s.books.FindByID(ctx, bookID)
	if err != nil {
		return domain.BookReturned{}, err
	}
	checkedOut, ok := book.AsCheckedOut()
	if !ok || !checkedOut.By(patronID) {
		return domain.BookReturned{}, domain.ErrBookNotCheckedOut
	}

	patron, err := s.patrons.FindByID(ctx, patronID)
	if err != nil {
		return domain.BookReturned{}, err
	}

	returned := domain.NewBookReturned(checkedOut, s.clock.Now())
	if err := s.patrons.Save(ctx, patron.Apply(returned), sharedDomain.NewOutboxEvent(domain.PatronAggregate, returned)); err != nil {
		return domain.BookReturned{}, err
	}
	return returned, nil
}

// CancelDuplicateHold anula la reserva del segundo lector cuando el libro ya estaba
// reservado por otro. Si la reserva ya no existe no hace nada.
func (s *LendingService) CancelDuplicateHold(ctx context.Context, evt domain.BookDuplicateHoldFound) error {
	return utils.RetryOnConflict(ctx, conflictAttempts, conflictDelay, func() error {
		patron, err := s.patrons.FindByID(ctx, evt.SecondPatronID)
		if err != nil {
			return err
		}
		if !patron.HasHold(evt.BookID, evt.LibraryBranchID) {
			s.log.Debug("Duplicate hold already gone", zap.String("book_id", evt.BookID.String()))
			return nil
		}

		result := patron.CancelHold(domain.BookOnHold{
			Info:         domain.BookInformation{BookID: evt.BookID},
			HoldPlacedAt: evt.LibraryBranchID,
			ByPatron:     evt.SecondPatronID,
		}, s.clock.Now())
		canceled, ok := result.Success()
		if !ok {
			return nil
		}

		s.log.Info("🔁 Reserva duplicada cancelada",
			zap.String("book_id", evt.BookID.String()),
			zap.String("patron_id", evt.SecondPatronID.String()))
		return s.patrons.Save(ctx, patron.Apply(canceled), sharedDomain.NewOutboxEvent(domain.PatronAggregate, canceled))
	})
}

// reject guarda el evento de fallo sin tocar el agregado y devuelve el rechazo.
func (s *LendingService) reject(ctx context.Context, failed domain.PatronEvent, reason string) error {
	if err := s.outbox.Stage(ctx, sharedDomain.NewOutboxEvent(domain.PatronAggregate, failed)); err != nil {
		return fmt.Errorf("stage %s: %w", failed.EventType(), err)
	}
	s.log.Info("🚫 Comando rechazado",
		zap.String("event_type", failed.EventType()),
		zap.String("reason", reason))
	return &RejectionError{EventType: failed.EventType(), Reason: reason}
}
