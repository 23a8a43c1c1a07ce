package domain

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// expectedReason reproduce el orden de las políticas sobre datos planos.
func expectedReason(patronType PatronType, holds, overdue int, bookType BookType, openEnded bool) string {
	regular := patronType == Regular
	switch {
	case regular && bookType == Restricted:
		return ReasonRestrictedBook
	case overdue >= MaxCountOfOverdueResources:
		return ReasonOverdueCheckouts
	case regular && holds >= MaxNumberOfHolds:
		return ReasonMaximumHolds
	case regular && openEnded:
		return ReasonOpenEndedHold
	}
	return ""
}

func TestPlaceOnHold_Propiedades(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		patronType := rapid.SampledFrom([]PatronType{Regular, Researcher}).Draw(rt, "patronType")
		bookType := rapid.SampledFrom([]BookType{Restricted, Circulating}).Draw(rt, "bookType")
		holds := rapid.IntRange(0, 7).Draw(rt, "holds")
		overdue := rapid.IntRange(0, 3).Draw(rt, "overdue")
		openEnded := rapid.Bool().Draw(rt, "openEnded")

		branch := NewLibraryBranchID()
		patron := NewPatron(PatronInformation{PatronID: NewPatronID(), PatronType: patronType})
		for i := 0; i < holds; i++ {
			patron = patron.Apply(BookPlacedOnHold{PatronID: patron.ID(), BookID: NewBookID(), LibraryBranchID: branch})
		}
		for i := 0; i < overdue; i++ {
			patron = patron.Apply(NewOverdueCheckoutRegistered(patron.ID(), NewBookID(), branch, now))
		}

		duration := OpenEndedHold(now)
		if !openEnded {
			duration, _ = CloseEndedHold(now, 3)
		}

		res := patron.PlaceOnHold(AvailableBook{Info: BookInformation{BookID: NewBookID(), BookType: bookType}, Branch: branch}, duration)

		want := expectedReason(patronType, holds, overdue, bookType, openEnded)
		if want != "" {
			failed, ok := res.Failure()
			if !ok || failed.Reason != want {
				rt.Fatalf("esperaba rechazo %q, obtuve %+v", want, failed)
			}
			return
		}

		events, ok := res.Success()
		if !ok {
			rt.Fatalf("esperaba éxito")
		}
		if (holds+1 == MaxNumberOfHolds) != (events.MaximumReached != nil) {
			rt.Fatalf("notificación de máximo incorrecta con %d reservas", holds)
		}
		if patron.NumberOfHolds() != holds {
			rt.Fatalf("PlaceOnHold modificó las reservas")
		}
	})
}

func TestBookApply_Propiedades(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		info := BookInformation{BookID: NewBookID(), BookType: rapid.SampledFrom([]BookType{Restricted, Circulating}).Draw(rt, "bookType")}
		patron := NewPatronID()
		branch := NewLibraryBranchID()
		book := NewAvailableBook(info, branch)

		candidates := []sharedDomain.DomainEvent{
			BookPlacedOnHold{PatronID: patron, BookID: info.BookID, LibraryBranchID: branch},
			BookHoldCanceled{PatronID: patron, BookID: info.BookID, LibraryBranchID: branch},
			BookHoldExpired{PatronID: patron, BookID: info.BookID, LibraryBranchID: branch},
			BookCheckedOut{PatronID: patron, BookID: info.BookID, LibraryBranchID: branch},
			BookReturned{PatronID: patron, BookID: info.BookID, LibraryBranchID: branch},
		}

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			evt := rapid.SampledFrom(candidates).Draw(rt, "event")
			next, err := Apply(book, evt)
			if err != nil {
				if !errors.Is(err, ErrUndefinedTransition) {
					rt.Fatalf("error inesperado: %v", err)
				}
				continue
			}
			if next.Info() != info {
				rt.Fatalf("BookInformation cambió: %+v", next.Info())
			}
			book = next
		}
	})
}
