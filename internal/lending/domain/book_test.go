package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func circulatingBook() BookInformation {
	return BookInformation{BookID: NewBookID(), BookType: Circulating}
}

func TestApply_TransicionesDefinidas(t *testing.T) {
	info := circulatingBook()
	branch := NewLibraryBranchID()
	other := NewLibraryBranchID()
	patron := NewPatronID()
	till := now.AddDate(0, 0, 3)

	available := AvailableBook{Info: info, Branch: branch, Version: 4}
	onHold := BookOnHold{Info: info, HoldPlacedAt: branch, ByPatron: patron, HoldTill: &till, Version: 4}
	checkedOut := CheckedOutBook{Info: info, CheckedOutAt: branch, ByPatron: patron, Version: 4}

	placed := BookPlacedOnHold{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: branch, HoldFrom: now, HoldTill: &till}
	returned := BookReturned{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: other}
	expired := NewBookHoldExpired(patron, info.BookID, other, now)
	canceled := BookHoldCanceled{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: other}
	checked := BookCheckedOut{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: other, Till: now.AddDate(0, 0, 10)}

	tests := []struct {
		name  string
		book  Book
		event sharedDomain.DomainEvent
		want  Book
	}{
		{"disponible + reserva", FromAvailable(available), placed, FromOnHold(onHold)},
		{"reservado + devolución", FromOnHold(onHold), returned, FromAvailable(AvailableBook{Info: info, Branch: other, Version: 4})},
		{"reservado + expiración", FromOnHold(onHold), expired, FromAvailable(AvailableBook{Info: info, Branch: other, Version: 4})},
		{"reservado + cancelación", FromOnHold(onHold), canceled, FromAvailable(AvailableBook{Info: info, Branch: other, Version: 4})},
		{"reservado + préstamo", FromOnHold(onHold), checked, FromCheckedOut(CheckedOutBook{Info: info, CheckedOutAt: other, ByPatron: patron, Version: 4})},
		{"prestado + devolución", FromCheckedOut(checkedOut), returned, FromAvailable(AvailableBook{Info: info, Branch: other, Version: 4})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.book, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, info, got.Info(), "BookInformation no debe cambiar")
			assert.Equal(t, sharedDomain.Version(4), got.Version(), "la versión la avanza el repositorio")
		})
	}
}

func TestApply_TransicionesNoDefinidas(t *testing.T) {
	info := circulatingBook()
	branch := NewLibraryBranchID()
	patron := NewPatronID()

	available := FromAvailable(AvailableBook{Info: info, Branch: branch})
	onHold := FromOnHold(BookOnHold{Info: info, HoldPlacedAt: branch, ByPatron: patron})
	checkedOut := FromCheckedOut(CheckedOutBook{Info: info, CheckedOutAt: branch, ByPatron: patron})

	placed := BookPlacedOnHold{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: branch}
	returned := BookReturned{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: branch}
	checked := BookCheckedOut{EventMeta: sharedDomain.NewEventMeta(now), PatronID: patron, BookID: info.BookID, LibraryBranchID: branch}
	overdue := NewOverdueCheckoutRegistered(patron, info.BookID, branch, now)

	tests := []struct {
		name  string
		book  Book
		event sharedDomain.DomainEvent
	}{
		{"disponible + devolución", available, returned},
		{"disponible + préstamo", available, checked},
		{"reservado + reserva", onHold, placed},
		{"prestado + reserva", checkedOut, placed},
		{"prestado + préstamo", checkedOut, checked},
		{"prestado + vencido", checkedOut, overdue},
		{"libro vacío", Book{}, placed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.book, tt.event)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUndefinedTransition))

			var transitionErr *UndefinedTransitionError
			require.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tt.event.EventType(), transitionErr.EventType)
		})
	}
}

func TestBook_WithVersion(t *testing.T) {
	book := NewAvailableBook(circulatingBook(), NewLibraryBranchID())
	assert.Equal(t, sharedDomain.Version(0), book.Version())

	versioned := book.WithVersion(7)
	assert.Equal(t, sharedDomain.Version(7), versioned.Version())
	assert.Equal(t, sharedDomain.Version(0), book.Version(), "WithVersion no modifica el original")
}

func TestAvailableBook_IsRestricted(t *testing.T) {
	restricted := AvailableBook{Info: BookInformation{BookID: NewBookID(), BookType: Restricted}}
	circulating := AvailableBook{Info: circulatingBook()}

	assert.True(t, restricted.IsRestricted())
	assert.False(t, circulating.IsRestricted())
}
