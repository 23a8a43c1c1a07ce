package domain

import (
	"sort"
	"time"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

const (
	// MaxNumberOfHolds aplica solo a lectores Regular.
	MaxNumberOfHolds = 5
	// MaxCountOfOverdueResources por sucursal antes de bloquear nuevas reservas.
	MaxCountOfOverdueResources = 2
)

// Hold es una reserva activa de un lector.
type Hold struct {
	BookID          BookID          `json:"book_id"`
	LibraryBranchID LibraryBranchID `json:"library_branch_id"`
}

// Patron decide reservas, préstamos y cancelaciones. Los métodos de decisión no
// modifican el estado: las proyecciones (reservas, vencidos) se reconstruyen con Apply.
type Patron struct {
	info     PatronInformation
	policies []PlacingOnHoldPolicy
	holds    map[Hold]struct{}
	overdue  map[LibraryBranchID]map[BookID]struct{}
	version  sharedDomain.Version
}

// NewPatron crea un lector sin reservas ni vencidos, en versión 0.
func NewPatron(info PatronInformation) Patron {
	return Patron{
		info:     info,
		policies: AllCurrentPolicies(),
		holds:    map[Hold]struct{}{},
		overdue:  map[LibraryBranchID]map[BookID]struct{}{},
	}
}

// WithPolicies sustituye las políticas (configuración, no estado persistido).
func (p Patron) WithPolicies(policies ...PlacingOnHoldPolicy) Patron {
	p.policies = policies
	return p
}

func (p Patron) Info() PatronInformation       { return p.info }
func (p Patron) ID() PatronID                  { return p.info.PatronID }
func (p Patron) IsRegular() bool               { return p.info.IsRegular() }
func (p Patron) Version() sharedDomain.Version { return p.version }
func (p Patron) NumberOfHolds() int            { return len(p.holds) }

func (p Patron) HasHold(bookID BookID, branch LibraryBranchID) bool {
	_, ok := p.holds[Hold{BookID: bookID, LibraryBranchID: branch}]
	return ok
}

func (p Patron) OverdueCheckoutsAt(branch LibraryBranchID) int {
	return len(p.overdue[branch])
}

func (p Patron) HasOverdueCheckout(bookID BookID, branch LibraryBranchID) bool {
	_, ok := p.overdue[branch][bookID]
	return ok
}

// Holds devuelve las reservas ordenadas para una salida estable.
func (p Patron) Holds() []Hold {
	out := make([]Hold, 0, len(p.holds))
	for h := range p.holds {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BookID.String() < out[j].BookID.String()
	})
	return out
}

// PlaceOnHold evalúa las políticas en orden; el primer rechazo corta la evaluación.
func (p Patron) PlaceOnHold(book AvailableBook, duration HoldDuration) sharedDomain.Result[BookHoldFailed, BookPlacedOnHoldEvents] {
	when := duration.From()
	if rejection := p.canHold(book, duration); rejection != nil {
		return sharedDomain.Failed[BookHoldFailed, BookPlacedOnHoldEvents](BookHoldFailed{
			EventMeta:       sharedDomain.NewEventMeta(when),
			Reason:          rejection.Reason,
			PatronID:        p.info.PatronID,
			BookID:          book.Info.BookID,
			LibraryBranchID: book.Branch,
		})
	}

	events := BookPlacedOnHoldEvents{
		PlacedOnHold: BookPlacedOnHold{
			EventMeta:       sharedDomain.NewEventMeta(when),
			PatronID:        p.info.PatronID,
			BookID:          book.Info.BookID,
			BookType:        book.Info.BookType,
			LibraryBranchID: book.Branch,
			HoldFrom:        when,
			HoldTill:        duration.Till(),
		},
	}
	if p.NumberOfHolds()+1 == MaxNumberOfHolds {
		events.MaximumReached = &MaximumNumberOfHoldsReached{
			EventMeta:     sharedDomain.NewEventMeta(when),
			PatronID:      p.info.PatronID,
			NumberOfHolds: MaxNumberOfHolds,
		}
	}
	return sharedDomain.Succeeded[BookHoldFailed](events)
}

// ownsHold exige las dos vistas: la reserva en el lector y el libro reservado a su
// nombre. Durante una reserva duplicada el segundo lector solo cumple la primera.
func (p Patron) ownsHold(book BookOnHold) bool {
	return book.By(p.info.PatronID) && p.HasHold(book.Info.BookID, book.HoldPlacedAt)
}

// CancelHold solo procede si la reserva es del lector.
func (p Patron) CancelHold(book BookOnHold, at time.Time) sharedDomain.Result[BookHoldCancelingFailed, BookHoldCanceled] {
	if p.ownsHold(book) {
		return sharedDomain.Succeeded[BookHoldCancelingFailed](BookHoldCanceled{
			EventMeta:       sharedDomain.NewEventMeta(at),
			PatronID:        p.info.PatronID,
			BookID:          book.Info.BookID,
			LibraryBranchID: book.HoldPlacedAt,
		})
	}
	return sharedDomain.Failed[BookHoldCancelingFailed, BookHoldCanceled](BookHoldCancelingFailed{
		EventMeta:       sharedDomain.NewEventMeta(at),
		PatronID:        p.info.PatronID,
		BookID:          book.Info.BookID,
		LibraryBranchID: book.HoldPlacedAt,
	})
}

// CheckOut convierte una reserva propia en préstamo.
func (p Patron) CheckOut(book BookOnHold, duration CheckoutDuration) sharedDomain.Result[BookCheckingOutFailed, BookCheckedOut] {
	when := duration.From()
	if p.ownsHold(book) {
		return sharedDomain.Succeeded[BookCheckingOutFailed](BookCheckedOut{
			EventMeta:       sharedDomain.NewEventMeta(when),
			PatronID:        p.info.PatronID,
			BookID:          book.Info.BookID,
			BookType:        book.Info.BookType,
			LibraryBranchID: book.HoldPlacedAt,
			Till:            duration.Till(),
		})
	}
	return sharedDomain.Failed[BookCheckingOutFailed, BookCheckedOut](BookCheckingOutFailed{
		EventMeta:       sharedDomain.NewEventMeta(when),
		Reason:          ReasonBookNotHeldByPatron,
		PatronID:        p.info.PatronID,
		BookID:          book.Info.BookID,
		LibraryBranchID: book.HoldPlacedAt,
	})
}

func (p Patron) canHold(book AvailableBook, duration HoldDuration) *Rejection {
	for _, policy := range p.policies {
		if rejection := policy(book, p, duration); rejection != nil {
			return rejection
		}
	}
	return nil
}

// Apply pliega eventos sobre las proyecciones del lector y devuelve una copia nueva.
// Los eventos sin efecto en el estado (fallos, notificaciones) se ignoran.
func (p Patron) Apply(events ...PatronEvent) Patron {
	next := p.clone()
	for _, evt := range events {
		switch e := evt.(type) {
		case BookPlacedOnHold:
			next.holds[Hold{BookID: e.BookID, LibraryBranchID: e.LibraryBranchID}] = struct{}{}
		case BookHoldCanceled:
			delete(next.holds, Hold{BookID: e.BookID, LibraryBranchID: e.LibraryBranchID})
		case BookHoldExpired:
			delete(next.holds, Hold{BookID: e.BookID, LibraryBranchID: e.LibraryBranchID})
		case BookCheckedOut:
			delete(next.holds, Hold{BookID: e.BookID, LibraryBranchID: e.LibraryBranchID})
		case OverdueCheckoutRegistered:
			if next.overdue[e.LibraryBranchID] == nil {
				next.overdue[e.LibraryBranchID] = map[BookID]struct{}{}
			}
			next.overdue[e.LibraryBranchID][e.BookID] = struct{}{}
		case BookReturned:
			if books, ok := next.overdue[e.LibraryBranchID]; ok {
				delete(books, e.BookID)
				if len(books) == 0 {
					delete(next.overdue, e.LibraryBranchID)
				}
			}
		}
	}
	return next
}

func (p Patron) clone() Patron {
	next := p
	next.holds = make(map[Hold]struct{}, len(p.holds))
	for h := range p.holds {
		next.holds[h] = struct{}{}
	}
	next.overdue = make(map[LibraryBranchID]map[BookID]struct{}, len(p.overdue))
	for branch, books := range p.overdue {
		copied := make(map[BookID]struct{}, len(books))
		for b := range books {
			copied[b] = struct{}{}
		}
		next.overdue[branch] = copied
	}
	return next
}

// PatronSnapshot es la forma persistida del agregado.
type PatronSnapshot struct {
	Info             PatronInformation            `json:"info"`
	Holds            []Hold                       `json:"holds"`
	OverdueCheckouts map[LibraryBranchID][]BookID `json:"overdue_checkouts"`
}

func (p Patron) Snapshot() PatronSnapshot {
	overdue := make(map[LibraryBranchID][]BookID, len(p.overdue))
	for branch, books := range p.overdue {
		ids := make([]BookID, 0, len(books))
		for b := range books {
			ids = append(ids, b)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		overdue[branch] = ids
	}
	return PatronSnapshot{Info: p.info, Holds: p.Holds(), OverdueCheckouts: overdue}
}

// RestorePatron reconstruye el agregado desde su snapshot con las políticas vigentes.
func RestorePatron(s PatronSnapshot, version sharedDomain.Version) Patron {
	p := NewPatron(s.Info)
	p.version = version
	for _, h := range s.Holds {
		p.holds[h] = struct{}{}
	}
	for branch, books := range s.OverdueCheckouts {
		if len(books) == 0 {
			continue
		}
		p.overdue[branch] = make(map[BookID]struct{}, len(books))
		for _, b := range books {
			p.overdue[branch][b] = struct{}{}
		}
	}
	return p
}
