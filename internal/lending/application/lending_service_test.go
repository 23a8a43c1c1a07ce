package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogueDomain "github.com/davicafu/lendinglab/internal/catalogue/domain"
	"github.com/davicafu/lendinglab/internal/lending/domain"
	"github.com/davicafu/lendinglab/internal/shared/clock"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
	sharedInfraEvents "github.com/davicafu/lendinglab/internal/shared/infra/events"
	"github.com/davicafu/lendinglab/internal/shared/infra/relayer"
	"github.com/davicafu/lendinglab/tests/mocks"
)

var time0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *clock.Fixed
	outbox  *mocks.InMemoryOutbox
	patrons *mocks.InMemoryPatronRepo
	books   *mocks.InMemoryBookRepo
	sheet   *InMemoryDailySheet
	service *LendingService
	worker  *relayer.Worker
	branch  domain.LibraryBranchID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	fx := &fixture{
		clock:  clock.NewFixed(time0),
		outbox: mocks.NewInMemoryOutbox(),
		sheet:  NewInMemoryDailySheet(),
		branch: domain.NewLibraryBranchID(),
	}
	fx.patrons = mocks.NewInMemoryPatronRepo(fx.outbox)
	fx.books = mocks.NewInMemoryBookRepo(fx.outbox)
	fx.service = NewLendingService(fx.patrons, fx.books, fx.outbox, fx.sheet, fx.clock, log)

	publisher := sharedInfraEvents.NewForwardingPublisher(log)
	publisher.Subscribe("books", NewBookEventsHandler(fx.books, fx.outbox, fx.clock, log))
	publisher.Subscribe("patrons", NewPatronEventsHandler(fx.service))
	publisher.Subscribe("catalogue", NewCatalogueEventsHandler(fx.books, fx.branch, log))
	publisher.Subscribe("daily-sheet", NewDailySheetProjection(fx.sheet))

	registry := sharedEvents.Merge(domain.NewEventRegistry(), catalogueDomain.NewEventRegistry())
	fx.worker = relayer.NewOutboxWorker(fx.outbox, publisher, registry, relayer.Config{BatchSize: 100, ForwardTimeout: time.Second}, log)
	return fx
}

// drain reenvía todo lo pendiente, incluidos los eventos que generen los suscriptores.
func (fx *fixture) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := fx.worker.ProcessBatch(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
	t.Fatal("el outbox no se vació")
}

func (fx *fixture) patron(t *testing.T, patronType domain.PatronType) domain.PatronID {
	t.Helper()
	p, err := fx.service.RegisterPatron(context.Background(), patronType)
	require.NoError(t, err)
	return p.ID()
}

func (fx *fixture) book(t *testing.T, bookType domain.BookType) domain.BookID {
	t.Helper()
	info := domain.BookInformation{BookID: domain.NewBookID(), BookType: bookType}
	require.NoError(t, fx.books.Create(context.Background(), domain.NewAvailableBook(info, fx.branch)))
	return info.BookID
}

func days(n int) *int { return &n }

func TestPlaceOnHold_Success(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	events, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(7)})
	require.NoError(t, err)
	require.NotNil(t, events.PlacedOnHold.HoldTill)
	assert.Equal(t, fx.clock.Now().AddDate(0, 0, 7), *events.PlacedOnHold.HoldTill)
	assert.Equal(t, []string{domain.EventPatronCreated, domain.EventBookPlacedOnHold}, fx.outbox.Types())

	patron, err := fx.patrons.FindByID(ctx, patronID)
	require.NoError(t, err)
	assert.True(t, patron.HasHold(bookID, fx.branch))
	assert.Equal(t, sharedDomain.Version(1), patron.Version())

	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	onHold, ok := book.AsOnHold()
	require.True(t, ok)
	assert.Equal(t, patronID, onHold.ByPatron)
	assert.Equal(t, sharedDomain.Version(1), book.Version())
}

func TestPlaceOnHold_RestrictedBookRejected(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Restricted)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(7)})

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.ErrorIs(t, err, ErrCommandRejected)
	assert.Equal(t, domain.ReasonRestrictedBook, rejection.Reason)
	assert.Equal(t, []string{domain.EventPatronCreated, domain.EventBookHoldFailed}, fx.outbox.Types())

	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	_, available := book.AsAvailable()
	assert.True(t, available)

	patron, err := fx.patrons.FindByID(ctx, patronID)
	require.NoError(t, err)
	assert.Equal(t, sharedDomain.Version(0), patron.Version(), "un rechazo no modifica al lector")
}

func TestPlaceOnHold_OverdueCheckoutsRejected(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Researcher)
	for i := 0; i < domain.MaxCountOfOverdueResources; i++ {
		require.NoError(t, fx.service.RegisterOverdueCheckout(ctx, domain.OverdueCheckout{
			PatronID: patronID, BookID: domain.NewBookID(), LibraryBranchID: fx.branch,
		}))
	}
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, domain.ReasonOverdueCheckouts, rejection.Reason)
}

func TestPlaceOnHold_Errors(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Researcher)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: domain.NewBookID()})
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: domain.NewPatronID(), BookID: bookID})
	assert.ErrorIs(t, err, domain.ErrPatronNotFound)

	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidHoldDuration)

	fx.patrons.SaveErr = sharedDomain.ErrConcurrencyConflict
	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})
	assert.ErrorIs(t, err, sharedDomain.ErrConcurrencyConflict)

	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})
	require.NoError(t, err)
	fx.drain(t)

	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})
	assert.ErrorIs(t, err, domain.ErrBookNotAvailable)
}

func TestRegisterPatron_InvalidType(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.RegisterPatron(context.Background(), "Librarian")

	assert.ErrorIs(t, err, domain.ErrInvalidPatronType)
}

func TestCheckOutAndReturn(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(3)})
	require.NoError(t, err)
	fx.drain(t)

	_, err = fx.service.CheckOut(ctx, CheckOutCommand{PatronID: patronID, BookID: bookID, Days: domain.MaxCheckoutDurationDays + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidCheckoutDuration)

	checkedOut, err := fx.service.CheckOut(ctx, CheckOutCommand{PatronID: patronID, BookID: bookID, Days: 14})
	require.NoError(t, err)
	assert.Equal(t, fx.clock.Now().AddDate(0, 0, 14), checkedOut.Till)
	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCheckedOut, book.State)

	_, err = fx.service.ReturnBook(ctx, domain.NewPatronID(), bookID)
	assert.ErrorIs(t, err, domain.ErrBookNotCheckedOut)

	_, err = fx.service.ReturnBook(ctx, patronID, bookID)
	require.NoError(t, err)
	fx.drain(t)

	book, err = fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAvailable, book.State)
}

func TestCheckOut_WithoutHoldRejected(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	holder := fx.patron(t, domain.Regular)
	other := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: holder, BookID: bookID, Days: days(3)})
	require.NoError(t, err)
	fx.drain(t)

	_, err = fx.service.CheckOut(ctx, CheckOutCommand{PatronID: other, BookID: bookID, Days: 7})

	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, domain.ReasonBookNotHeldByPatron, rejection.Reason)
	assert.Equal(t, domain.EventBookCheckingOutFailed, rejection.EventType)
}

func TestCancelHold(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	other := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.CancelHold(ctx, patronID, bookID)
	assert.ErrorIs(t, err, domain.ErrBookNotOnHold)

	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(3)})
	require.NoError(t, err)
	fx.drain(t)

	_, err = fx.service.CancelHold(ctx, other, bookID)
	assert.ErrorIs(t, err, ErrCommandRejected)

	_, err = fx.service.CancelHold(ctx, patronID, bookID)
	require.NoError(t, err)
	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAvailable, book.State)
}

func TestDuplicateHold_SecondPatronHoldCanceled(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	first := fx.patron(t, domain.Researcher)
	second := fx.patron(t, domain.Researcher)
	bookID := fx.book(t, domain.Circulating)

	// Ambos ven el libro disponible antes de que el lado del libro se actualice.
	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: first, BookID: bookID})
	require.NoError(t, err)
	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: second, BookID: bookID})
	require.NoError(t, err)

	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	onHold, ok := book.AsOnHold()
	require.True(t, ok)
	assert.Equal(t, first, onHold.ByPatron)

	loser, err := fx.patrons.FindByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0, loser.NumberOfHolds())
	assert.Contains(t, fx.outbox.Types(), domain.EventBookDuplicateHoldFound)
	assert.Contains(t, fx.outbox.Types(), domain.EventBookHoldCanceled)
}

func TestDuplicateHold_SecondPatronCannotCheckOut(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	first := fx.patron(t, domain.Researcher)
	second := fx.patron(t, domain.Researcher)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: first, BookID: bookID})
	require.NoError(t, err)
	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: second, BookID: bookID})
	require.NoError(t, err)

	// Un solo lote: el libro queda reservado al primero y la cancelación del
	// segundo todavía no se ha reenviado.
	_, err = fx.worker.ProcessBatch(ctx)
	require.NoError(t, err)
	loser, err := fx.patrons.FindByID(ctx, second)
	require.NoError(t, err)
	require.Equal(t, 1, loser.NumberOfHolds())

	_, err = fx.service.CheckOut(ctx, CheckOutCommand{PatronID: second, BookID: bookID, Days: 7})
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, domain.ReasonBookNotHeldByPatron, rejection.Reason)

	_, err = fx.service.CancelHold(ctx, second, bookID)
	require.ErrorAs(t, err, &rejection)

	fx.drain(t)

	book, err := fx.books.FindByID(ctx, bookID)
	require.NoError(t, err)
	onHold, ok := book.AsOnHold()
	require.True(t, ok)
	assert.Equal(t, first, onHold.ByPatron)

	winner, err := fx.patrons.FindByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, winner.NumberOfHolds())
	loser, err = fx.patrons.FindByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0, loser.NumberOfHolds())
}

func TestPlaceOnHold_SamePatronTwiceBeforeRelay(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Researcher)
	for i := 0; i < domain.MaxNumberOfHolds-2; i++ {
		_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: fx.book(t, domain.Circulating)})
		require.NoError(t, err)
	}
	bookID := fx.book(t, domain.Circulating)

	events, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})
	require.NoError(t, err)
	assert.Nil(t, events.MaximumReached)

	// Cuarta reserva en el lector: repetirla no debe anunciar el máximo.
	_, err = fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID})
	assert.ErrorIs(t, err, domain.ErrBookNotAvailable)

	patron, err := fx.patrons.FindByID(ctx, patronID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxNumberOfHolds-1, patron.NumberOfHolds())
	assert.NotContains(t, fx.outbox.Types(), domain.EventMaximumNumberOfHoldsReached)

	placed := 0
	for _, eventType := range fx.outbox.Types() {
		if eventType == domain.EventBookPlacedOnHold {
			placed++
		}
	}
	assert.Equal(t, domain.MaxNumberOfHolds-1, placed)
}

func TestExpireHolds(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(1)})
	require.NoError(t, err)
	fx.drain(t)

	result, err := fx.service.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, FullSuccess, result)
	patron, _ := fx.patrons.FindByID(ctx, patronID)
	assert.Equal(t, 1, patron.NumberOfHolds(), "todavía no vence")

	fx.clock.Advance(48 * time.Hour)
	result, err = fx.service.ExpireHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, FullSuccess, result)
	fx.drain(t)

	patron, _ = fx.patrons.FindByID(ctx, patronID)
	assert.Equal(t, 0, patron.NumberOfHolds())
	book, _ := fx.books.FindByID(ctx, bookID)
	assert.Equal(t, domain.StateAvailable, book.State)

	holds, err := fx.sheet.HoldsToExpire(ctx, fx.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestRegisterOverdueCheckouts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	patronID := fx.patron(t, domain.Regular)
	bookID := fx.book(t, domain.Circulating)

	_, err := fx.service.PlaceOnHold(ctx, PlaceOnHoldCommand{PatronID: patronID, BookID: bookID, Days: days(3)})
	require.NoError(t, err)
	fx.drain(t)
	_, err = fx.service.CheckOut(ctx, CheckOutCommand{PatronID: patronID, BookID: bookID, Days: 7})
	require.NoError(t, err)
	fx.drain(t)

	fx.clock.Advance(8 * 24 * time.Hour)
	result, err := fx.service.RegisterOverdueCheckouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, FullSuccess, result)
	fx.drain(t)

	patron, _ := fx.patrons.FindByID(ctx, patronID)
	assert.Equal(t, 1, patron.OverdueCheckoutsAt(fx.branch))

	// La hoja ya no lo lista y repetir el registro no cambia nada.
	checkouts, _ := fx.sheet.CheckoutsToOverdue(ctx, fx.clock.Now())
	assert.Empty(t, checkouts)
	require.NoError(t, fx.service.RegisterOverdueCheckout(ctx, domain.OverdueCheckout{PatronID: patronID, BookID: bookID, LibraryBranchID: fx.branch}))
	again, _ := fx.patrons.FindByID(ctx, patronID)
	assert.Equal(t, patron.Version(), again.Version())
}

func TestExpireHolds_SomeFailed(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	till := fx.clock.Now().Add(-time.Hour)
	require.NoError(t, fx.sheet.UpsertHold(ctx, domain.ExpiredHold{
		PatronID: domain.NewPatronID(), BookID: domain.NewBookID(), LibraryBranchID: fx.branch, HoldTill: till,
	}))

	result, err := fx.service.ExpireHolds(ctx)

	require.NoError(t, err)
	assert.Equal(t, SomeFailed, result)
}
