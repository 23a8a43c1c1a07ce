package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
)

// DailySheetProjection es la proyección de reservas cerradas y préstamos activos.
// Se alimenta de los eventos reenviados por el outbox y escribe en el repositorio.
type DailySheetProjection struct {
	repo domain.DailySheetRepository
}

var _ sharedBus.Subscriber = (*DailySheetProjection)(nil)

func NewDailySheetProjection(repo domain.DailySheetRepository) *DailySheetProjection {
	return &DailySheetProjection{repo: repo}
}

// Handle actualiza la proyección; reaplicar un evento deja el mismo estado.
func (p *DailySheetProjection) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	switch e := event.(type) {
	case domain.BookPlacedOnHold:
		if e.HoldTill == nil {
			return nil
		}
		return p.repo.UpsertHold(ctx, domain.ExpiredHold{
			PatronID: e.PatronID, BookID: e.BookID, LibraryBranchID: e.LibraryBranchID, HoldTill: *e.HoldTill,
		})
	case domain.BookHoldCanceled:
		return p.repo.RemoveHold(ctx, e.PatronID, e.BookID)
	case domain.BookHoldExpired:
		return p.repo.RemoveHold(ctx, e.PatronID, e.BookID)
	case domain.BookCheckedOut:
		if err := p.repo.RemoveHold(ctx, e.PatronID, e.BookID); err != nil {
			return err
		}
		return p.repo.UpsertCheckout(ctx, domain.OverdueCheckout{
			PatronID: e.PatronID, BookID: e.BookID, LibraryBranchID: e.LibraryBranchID, Till: e.Till,
		})
	case domain.OverdueCheckoutRegistered:
		return p.repo.RemoveCheckout(ctx, e.PatronID, e.BookID)
	case domain.BookReturned:
		return p.repo.RemoveCheckout(ctx, e.PatronID, e.BookID)
	}
	return nil
}

type sheetKey struct {
	patron domain.PatronID
	book   domain.BookID
}

// InMemoryDailySheet guarda la hoja diaria en memoria. Útil en tests.
type InMemoryDailySheet struct {
	mu        sync.RWMutex
	holds     map[sheetKey]domain.ExpiredHold
	checkouts map[sheetKey]domain.OverdueCheckout
}

var _ domain.DailySheetRepository = (*InMemoryDailySheet)(nil)

func NewInMemoryDailySheet() *InMemoryDailySheet {
	return &InMemoryDailySheet{
		holds:     map[sheetKey]domain.ExpiredHold{},
		checkouts: map[sheetKey]domain.OverdueCheckout{},
	}
}

func (s *InMemoryDailySheet) UpsertHold(_ context.Context, hold domain.ExpiredHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[sheetKey{hold.PatronID, hold.BookID}] = hold
	return nil
}

func (s *InMemoryDailySheet) RemoveHold(_ context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holds, sheetKey{patronID, bookID})
	return nil
}

func (s *InMemoryDailySheet) UpsertCheckout(_ context.Context, checkout domain.OverdueCheckout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkouts[sheetKey{checkout.PatronID, checkout.BookID}] = checkout
	return nil
}

func (s *InMemoryDailySheet) RemoveCheckout(_ context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkouts, sheetKey{patronID, bookID})
	return nil
}

func (s *InMemoryDailySheet) HoldsToExpire(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ExpiredHold
	for _, h := range s.holds {
		if h.HoldTill.Before(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoldTill.Before(out[j].HoldTill) })
	return out, nil
}

func (s *InMemoryDailySheet) CheckoutsToOverdue(ctx context.Context, now time.Time) ([]domain.OverdueCheckout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.OverdueCheckout
	for _, c := range s.checkouts {
		if c.Till.Before(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Till.Before(out[j].Till) })
	return out, nil
}
