package domain

import (
	"context"
	"errors"
	"time"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// ---------- Errores de dominio ----------
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrPatronNotFound      = errors.New("patron not found")
	ErrBookAlreadyExists   = errors.New("book already exists")
	ErrPatronAlreadyExists = errors.New("patron already exists")
	ErrBookNotAvailable    = errors.New("book is not available")
	ErrBookNotOnHold       = errors.New("book is not on hold")
	ErrBookNotCheckedOut   = errors.New("book is not checked out")
	ErrInvalidPatronType   = errors.New("invalid patron type")
)

// ---------- Interfaces (Ports) ----------

// BookRepository persiste libros junto a los eventos de outbox de la misma operación.
type BookRepository interface {
	// Debe devolver ErrBookAlreadyExists si el libro ya existe.
	Create(ctx context.Context, book Book, events ...sharedDomain.OutboxEvent) error

	// Debe devolver ErrBookNotFound si no existe.
	FindByID(ctx context.Context, id BookID) (Book, error)

	// Save compara la versión guardada con book.Version() dentro de la escritura.
	// Devuelve sharedDomain.ErrConcurrencyConflict si no coincide; si coincide guarda version+1.
	Save(ctx context.Context, book Book, events ...sharedDomain.OutboxEvent) error
}

// PatronRepository sigue el mismo contrato que BookRepository.
type PatronRepository interface {
	Create(ctx context.Context, patron Patron, events ...sharedDomain.OutboxEvent) error
	FindByID(ctx context.Context, id PatronID) (Patron, error)
	Save(ctx context.Context, patron Patron, events ...sharedDomain.OutboxEvent) error
}

// ---------- Hoja diaria ----------

// ExpiredHold es una reserva cerrada cuya fecha de fin ya pasó.
type ExpiredHold struct {
	PatronID        PatronID
	BookID          BookID
	LibraryBranchID LibraryBranchID
	HoldTill        time.Time
}

func (h ExpiredHold) ToEvent(when time.Time) BookHoldExpired {
	return NewBookHoldExpired(h.PatronID, h.BookID, h.LibraryBranchID, when)
}

// OverdueCheckout es un préstamo vencido todavía sin devolver.
type OverdueCheckout struct {
	PatronID        PatronID
	BookID          BookID
	LibraryBranchID LibraryBranchID
	Till            time.Time
}

func (c OverdueCheckout) ToEvent(when time.Time) OverdueCheckoutRegistered {
	return NewOverdueCheckoutRegistered(c.PatronID, c.BookID, c.LibraryBranchID, when)
}

// DailySheet es el modelo de lectura que alimenta los trabajos diarios.
type DailySheet interface {
	HoldsToExpire(ctx context.Context, now time.Time) ([]ExpiredHold, error)
	CheckoutsToOverdue(ctx context.Context, now time.Time) ([]OverdueCheckout, error)
}

// DailySheetRepository persiste la hoja diaria. Las escrituras son upserts y
// borrados por (lector, libro), así que reaplicar un evento no cambia nada.
type DailySheetRepository interface {
	DailySheet
	UpsertHold(ctx context.Context, hold ExpiredHold) error
	RemoveHold(ctx context.Context, patronID PatronID, bookID BookID) error
	UpsertCheckout(ctx context.Context, checkout OverdueCheckout) error
	RemoveCheckout(ctx context.Context, patronID PatronID, bookID BookID) error
}

// ---------- Analítica ----------

// DailyLendingActivity agrega por día los eventos de préstamo.
type DailyLendingActivity struct {
	Day        time.Time `json:"day"`
	Holds      int       `json:"holds"`
	Checkouts  int       `json:"checkouts"`
	Returns    int       `json:"returns"`
	Rejections int       `json:"rejections"`
}

type LendingAnalyticsRepository interface {
	GetDailyActivity(ctx context.Context, start, end time.Time) ([]DailyLendingActivity, error)
}
