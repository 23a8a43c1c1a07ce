package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// Nombres de los eventos tal y como se guardan en outbox y viajan a Kafka.
const (
	EventPatronCreated               = "lending.patron_created"
	EventBookPlacedOnHold            = "lending.book_placed_on_hold"
	EventMaximumNumberOfHoldsReached = "lending.maximum_number_of_holds_reached"
	EventBookHoldFailed              = "lending.book_hold_failed"
	EventBookHoldCanceled            = "lending.book_hold_canceled"
	EventBookHoldCancelingFailed     = "lending.book_hold_canceling_failed"
	EventBookHoldExpired             = "lending.book_hold_expired"
	EventBookCheckedOut              = "lending.book_checked_out"
	EventBookCheckingOutFailed       = "lending.book_checking_out_failed"
	EventBookReturned                = "lending.book_returned"
	EventOverdueCheckoutRegistered   = "lending.overdue_checkout_registered"
	EventBookDuplicateHoldFound      = "lending.book_duplicate_hold_found"
)

// Tipos de agregado para la columna aggregate_type del outbox.
const (
	PatronAggregate = "patron"
	BookAggregate   = "book"
)

// PatronEvent es cualquier evento emitido por el agregado Patron.
type PatronEvent interface {
	sharedDomain.DomainEvent
	patron() PatronID
}

type PatronCreated struct {
	sharedDomain.EventMeta
	PatronID   PatronID   `json:"patron_id"`
	PatronType PatronType `json:"patron_type"`
}

func NewPatronCreated(info PatronInformation, when time.Time) PatronCreated {
	return PatronCreated{EventMeta: sharedDomain.NewEventMeta(when), PatronID: info.PatronID, PatronType: info.PatronType}
}

type BookPlacedOnHold struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	BookType        BookType        `json:"book_type"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
	HoldFrom        time.Time       `json:"hold_from"`
	HoldTill        *time.Time      `json:"hold_till,omitempty"` // nil = reserva abierta
}

type MaximumNumberOfHoldsReached struct {
	sharedDomain.EventMeta
	PatronID      PatronID `json:"patron_id"`
	NumberOfHolds int      `json:"number_of_holds"`
}

type BookHoldFailed struct {
	sharedDomain.EventMeta
	Reason          string          `json:"reason"`
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

type BookHoldCanceled struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

type BookHoldCancelingFailed struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

type BookHoldExpired struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

func NewBookHoldExpired(patronID PatronID, bookID BookID, branch LibraryBranchID, when time.Time) BookHoldExpired {
	return BookHoldExpired{EventMeta: sharedDomain.NewEventMeta(when), PatronID: patronID, BookID: bookID, LibraryBranchID: branch}
}

type BookCheckedOut struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	BookType        BookType        `json:"book_type"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
	Till            time.Time       `json:"till"`
}

type BookCheckingOutFailed struct {
	sharedDomain.EventMeta
	Reason          string          `json:"reason"`
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

type BookReturned struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	BookType        BookType        `json:"book_type"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

func NewBookReturned(book CheckedOutBook, when time.Time) BookReturned {
	return BookReturned{
		EventMeta:       sharedDomain.NewEventMeta(when),
		PatronID:        book.ByPatron,
		BookID:          book.Info.BookID,
		BookType:        book.Info.BookType,
		LibraryBranchID: book.CheckedOutAt,
	}
}

type OverdueCheckoutRegistered struct {
	sharedDomain.EventMeta
	PatronID        PatronID        `json:"patron_id"`
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

func NewOverdueCheckoutRegistered(patronID PatronID, bookID BookID, branch LibraryBranchID, when time.Time) OverdueCheckoutRegistered {
	return OverdueCheckoutRegistered{EventMeta: sharedDomain.NewEventMeta(when), PatronID: patronID, BookID: bookID, LibraryBranchID: branch}
}

// BookDuplicateHoldFound lo emite el lado del libro cuando dos lectores reservan el mismo ejemplar.
type BookDuplicateHoldFound struct {
	sharedDomain.EventMeta
	FirstPatronID   PatronID        `json:"first_patron_id"`
	SecondPatronID  PatronID        `json:"second_patron_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
	BookID          BookID          `json:"book_id"`
}

func NewBookDuplicateHoldFound(first, second PatronID, branch LibraryBranchID, bookID BookID, when time.Time) BookDuplicateHoldFound {
	return BookDuplicateHoldFound{
		EventMeta:       sharedDomain.NewEventMeta(when),
		FirstPatronID:   first,
		SecondPatronID:  second,
		LibraryBranchID: branch,
		BookID:          bookID,
	}
}

// BookPlacedOnHoldEvents agrupa el resultado de una reserva: el evento principal y,
// si la reserva completa el cupo, la notificación de máximo alcanzado.
type BookPlacedOnHoldEvents struct {
	PlacedOnHold   BookPlacedOnHold
	MaximumReached *MaximumNumberOfHoldsReached
}

// Events devuelve los eventos en orden de emisión.
func (e BookPlacedOnHoldEvents) Events() []PatronEvent {
	out := []PatronEvent{e.PlacedOnHold}
	if e.MaximumReached != nil {
		out = append(out, *e.MaximumReached)
	}
	return out
}

func (e PatronCreated) AggregateID() uuid.UUID               { return e.PatronID.UUID() }
func (e BookPlacedOnHold) AggregateID() uuid.UUID            { return e.PatronID.UUID() }
func (e MaximumNumberOfHoldsReached) AggregateID() uuid.UUID { return e.PatronID.UUID() }
func (e BookHoldFailed) AggregateID() uuid.UUID              { return e.PatronID.UUID() }
func (e BookHoldCanceled) AggregateID() uuid.UUID            { return e.PatronID.UUID() }
func (e BookHoldCancelingFailed) AggregateID() uuid.UUID     { return e.PatronID.UUID() }
func (e BookHoldExpired) AggregateID() uuid.UUID             { return e.PatronID.UUID() }
func (e BookCheckedOut) AggregateID() uuid.UUID              { return e.PatronID.UUID() }
func (e BookCheckingOutFailed) AggregateID() uuid.UUID       { return e.PatronID.UUID() }
func (e BookReturned) AggregateID() uuid.UUID                { return e.PatronID.UUID() }
func (e OverdueCheckoutRegistered) AggregateID() uuid.UUID   { return e.PatronID.UUID() }
func (e BookDuplicateHoldFound) AggregateID() uuid.UUID      { return e.BookID.UUID() }

func (PatronCreated) EventType() string               { return EventPatronCreated }
func (BookPlacedOnHold) EventType() string            { return EventBookPlacedOnHold }
func (MaximumNumberOfHoldsReached) EventType() string { return EventMaximumNumberOfHoldsReached }
func (BookHoldFailed) EventType() string              { return EventBookHoldFailed }
func (BookHoldCanceled) EventType() string            { return EventBookHoldCanceled }
func (BookHoldCancelingFailed) EventType() string     { return EventBookHoldCancelingFailed }
func (BookHoldExpired) EventType() string             { return EventBookHoldExpired }
func (BookCheckedOut) EventType() string              { return EventBookCheckedOut }
func (BookCheckingOutFailed) EventType() string       { return EventBookCheckingOutFailed }
func (BookReturned) EventType() string                { return EventBookReturned }
func (OverdueCheckoutRegistered) EventType() string   { return EventOverdueCheckoutRegistered }
func (BookDuplicateHoldFound) EventType() string      { return EventBookDuplicateHoldFound }

func (e PatronCreated) patron() PatronID               { return e.PatronID }
func (e BookPlacedOnHold) patron() PatronID            { return e.PatronID }
func (e MaximumNumberOfHoldsReached) patron() PatronID { return e.PatronID }
func (e BookHoldFailed) patron() PatronID              { return e.PatronID }
func (e BookHoldCanceled) patron() PatronID            { return e.PatronID }
func (e BookHoldCancelingFailed) patron() PatronID     { return e.PatronID }
func (e BookHoldExpired) patron() PatronID             { return e.PatronID }
func (e BookCheckedOut) patron() PatronID              { return e.PatronID }
func (e BookCheckingOutFailed) patron() PatronID       { return e.PatronID }
func (e BookReturned) patron() PatronID                { return e.PatronID }
func (e OverdueCheckoutRegistered) patron() PatronID   { return e.PatronID }
