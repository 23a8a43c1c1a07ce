package domain

import (
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// ErrUndefinedTransition indica un evento que no corresponde al estado actual del libro.
// No es un rechazo de negocio: señala un evento entregado al agregado equivocado o
// un problema de orden, y nunca se absorbe en silencio.
var ErrUndefinedTransition = errors.New("undefined book state transition")

type UndefinedTransitionError struct {
	BookID    BookID
	State     BookState
	EventType string
}

func (e *UndefinedTransitionError) Error() string {
	return fmt.Sprintf("%s: book %s in state %s cannot handle %s", ErrUndefinedTransition, e.BookID, e.State, e.EventType)
}

func (e *UndefinedTransitionError) Unwrap() error { return ErrUndefinedTransition }

// BookState es la etiqueta de la variante activa.
type BookState string

const (
	StateAvailable  BookState = "available"
	StateOnHold     BookState = "on_hold"
	StateCheckedOut BookState = "checked_out"
)

type AvailableBook struct {
	Info    BookInformation      `json:"info"`
	Branch  LibraryBranchID      `json:"branch"`
	Version sharedDomain.Version `json:"-"`
}

func (b AvailableBook) IsRestricted() bool { return b.Info.BookType == Restricted }

type BookOnHold struct {
	Info         BookInformation      `json:"info"`
	HoldPlacedAt LibraryBranchID      `json:"hold_placed_at"`
	ByPatron     PatronID             `json:"by_patron"`
	HoldTill     *time.Time           `json:"hold_till,omitempty"`
	Version      sharedDomain.Version `json:"-"`
}

func (b BookOnHold) By(patronID PatronID) bool { return b.ByPatron == patronID }

type CheckedOutBook struct {
	Info         BookInformation      `json:"info"`
	CheckedOutAt LibraryBranchID      `json:"checked_out_at"`
	ByPatron     PatronID             `json:"by_patron"`
	Version      sharedDomain.Version `json:"-"`
}

func (b CheckedOutBook) By(patronID PatronID) bool { return b.ByPatron == patronID }

// Book es una unión etiquetada: State indica cuál de los tres punteros está relleno.
type Book struct {
	State      BookState       `json:"state"`
	Available  *AvailableBook  `json:"available,omitempty"`
	OnHold     *BookOnHold     `json:"on_hold,omitempty"`
	CheckedOut *CheckedOutBook `json:"checked_out,omitempty"`
}

func NewAvailableBook(info BookInformation, branch LibraryBranchID) Book {
	return FromAvailable(AvailableBook{Info: info, Branch: branch})
}

func FromAvailable(b AvailableBook) Book   { return Book{State: StateAvailable, Available: &b} }
func FromOnHold(b BookOnHold) Book         { return Book{State: StateOnHold, OnHold: &b} }
func FromCheckedOut(b CheckedOutBook) Book { return Book{State: StateCheckedOut, CheckedOut: &b} }

func (b Book) AsAvailable() (AvailableBook, bool) {
	if b.State != StateAvailable || b.Available == nil {
		return AvailableBook{}, false
	}
	return *b.Available, true
}

func (b Book) AsOnHold() (BookOnHold, bool) {
	if b.State != StateOnHold || b.OnHold == nil {
		return BookOnHold{}, false
	}
	return *b.OnHold, true
}

func (b Book) AsCheckedOut() (CheckedOutBook, bool) {
	if b.State != StateCheckedOut || b.CheckedOut == nil {
		return CheckedOutBook{}, false
	}
	return *b.CheckedOut, true
}

func (b Book) Info() BookInformation {
	switch {
	case b.Available != nil:
		return b.Available.Info
	case b.OnHold != nil:
		return b.OnHold.Info
	case b.CheckedOut != nil:
		return b.CheckedOut.Info
	}
	return BookInformation{}
}

func (b Book) ID() BookID { return b.Info().BookID }

func (b Book) Version() sharedDomain.Version {
	switch {
	case b.Available != nil:
		return b.Available.Version
	case b.OnHold != nil:
		return b.OnHold.Version
	case b.CheckedOut != nil:
		return b.CheckedOut.Version
	}
	return 0
}

// WithVersion devuelve una copia con la versión indicada (la usan los repositorios al cargar).
func (b Book) WithVersion(v sharedDomain.Version) Book {
	if a, ok := b.AsAvailable(); ok {
		a.Version = v
		return FromAvailable(a)
	}
	if h, ok := b.AsOnHold(); ok {
		h.Version = v
		return FromOnHold(h)
	}
	if c, ok := b.AsCheckedOut(); ok {
		c.Version = v
		return FromCheckedOut(c)
	}
	return b
}

// Apply calcula la siguiente variante. Conserva BookInformation y la versión cargada;
// el repositorio avanza la versión al guardar.
func Apply(book Book, event sharedDomain.DomainEvent) (Book, error) {
	if b, ok := book.AsAvailable(); ok {
		return applyToAvailable(b, event)
	}
	if b, ok := book.AsOnHold(); ok {
		return applyToOnHold(b, event)
	}
	if b, ok := book.AsCheckedOut(); ok {
		return applyToCheckedOut(b, event)
	}
	return Book{}, &UndefinedTransitionError{BookID: book.ID(), State: book.State, EventType: event.EventType()}
}

func applyToAvailable(b AvailableBook, event sharedDomain.DomainEvent) (Book, error) {
	switch e := event.(type) {
	case BookPlacedOnHold:
		return FromOnHold(BookOnHold{
			Info:         b.Info,
			HoldPlacedAt: e.LibraryBranchID,
			ByPatron:     e.PatronID,
			HoldTill:     e.HoldTill,
			Version:      b.Version,
		}), nil
	}
	return Book{}, &UndefinedTransitionError{BookID: b.Info.BookID, State: StateAvailable, EventType: event.EventType()}
}

func applyToOnHold(b BookOnHold, event sharedDomain.DomainEvent) (Book, error) {
	switch e := event.(type) {
	case BookReturned:
		return FromAvailable(AvailableBook{Info: b.Info, Branch: e.LibraryBranchID, Version: b.Version}), nil
	case BookHoldExpired:
		return FromAvailable(AvailableBook{Info: b.Info, Branch: e.LibraryBranchID, Version: b.Version}), nil
	case BookHoldCanceled:
		return FromAvailable(AvailableBook{Info: b.Info, Branch: e.LibraryBranchID, Version: b.Version}), nil
	case BookCheckedOut:
		return FromCheckedOut(CheckedOutBook{
			Info:         b.Info,
			CheckedOutAt: e.LibraryBranchID,
			ByPatron:     e.PatronID,
			Version:      b.Version,
		}), nil
	}
	return Book{}, &UndefinedTransitionError{BookID: b.Info.BookID, State: StateOnHold, EventType: event.EventType()}
}

func applyToCheckedOut(b CheckedOutBook, event sharedDomain.DomainEvent) (Book, error) {
	switch e := event.(type) {
	case BookReturned:
		return FromAvailable(AvailableBook{Info: b.Info, Branch: e.LibraryBranchID, Version: b.Version}), nil
	}
	return Book{}, &UndefinedTransitionError{BookID: b.Info.BookID, State: StateCheckedOut, EventType: event.EventType()}
}
