package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// BatchResult resume un trabajo por lotes de la hoja diaria.
type BatchResult string

const (
	FullSuccess BatchResult = "full_success"
	SomeFailed  BatchResult = "some_failed"
)

// ExpireHold registra la expiración de una reserva. Si el lector ya no la tiene
// (cancelada, prestada o expirada antes) no hace nada.
func (s *LendingService) ExpireHold(ctx context.Context, hold domain.ExpiredHold) error {
	return utils.RetryOnConflict(ctx, conflictAttempts, conflictDelay, func() error {
		patron, err := s.patrons.FindByID(ctx, hold.PatronID)
		if err != nil {
			return err
		}
		if !patron.HasHold(hold.BookID, hold.LibraryBranchID) {
			return nil
		}
		expired := hold.ToEvent(s.clock.Now())
		return s.patrons.Save(ctx, patron.Apply(expired), sharedDomain.NewOutboxEvent(domain.PatronAggregate, expired))
	})
}

// RegisterOverdueCheckout marca un préstamo vencido; repetirlo no cambia nada.
func (s *LendingService) RegisterOverdueCheckout(ctx context.Context, checkout domain.OverdueCheckout) error {
	return utils.RetryOnConflict(ctx, conflictAttempts, conflictDelay, func() error {
		patron, err := s.patrons.FindByID(ctx, checkout.PatronID)
		if err != nil {
			return err
		}
		if patron.HasOverdueCheckout(checkout.BookID, checkout.LibraryBranchID) {
			return nil
		}
		overdue := checkout.ToEvent(s.clock.Now())
		return s.patrons.Save(ctx, patron.Apply(overdue), sharedDomain.NewOutboxEvent(domain.PatronAggregate, overdue))
	})
}

// ExpireHolds procesa la hoja de reservas vencidas. Un fallo no detiene el resto.
func (s *LendingService) ExpireHolds(ctx context.Context) (BatchResult, error) {
	holds, err := s.sheet.HoldsToExpire(ctx, s.clock.Now())
	if err != nil {
		return SomeFailed, err
	}

	failed := 0
	for _, hold := range holds {
		if err := s.ExpireHold(ctx, hold); err != nil {
			failed++
			s.log.Warn("⚠️ No se pudo expirar la reserva",
				zap.String("patron_id", hold.PatronID.String()),
				zap.String("book_id", hold.BookID.String()),
				zap.Error(err))
		}
	}
	return s.batchResult("expire_holds", len(holds), failed), nil
}

// RegisterOverdueCheckouts procesa la hoja de préstamos vencidos.
func (s *LendingService) RegisterOverdueCheckouts(ctx context.Context) (BatchResult, error) {
	checkouts, err := s.sheet.CheckoutsToOverdue(ctx, s.clock.Now())
	if err != nil {
		return SomeFailed, err
	}

	failed := 0
	for _, checkout := range checkouts {
		if err := s.RegisterOverdueCheckout(ctx, checkout); err != nil {
			failed++
			s.log.Warn("⚠️ No se pudo registrar el préstamo vencido",
				zap.String("patron_id", checkout.PatronID.String()),
				zap.String("book_id", checkout.BookID.String()),
				zap.Error(err))
		}
	}
	return s.batchResult("register_overdue", len(checkouts), failed), nil
}

func (s *LendingService) batchResult(job string, total, failed int) BatchResult {
	s.log.Info("🗓️ Hoja diaria procesada", zap.String("job", job), zap.Int("total", total), zap.Int("failed", failed))
	if failed > 0 {
		return SomeFailed
	}
	return FullSuccess
}

// RunDailySheets ejecuta ambos trabajos en cada tick hasta que ctx se cancela.
func (s *LendingService) RunDailySheets(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("🗓️ Hoja diaria programada", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireHolds(ctx); err != nil {
				s.log.Warn("⚠️ No se pudo leer la hoja de reservas", zap.Error(err))
			}
			if _, err := s.RegisterOverdueCheckouts(ctx); err != nil {
				s.log.Warn("⚠️ No se pudo leer la hoja de préstamos", zap.Error(err))
			}
		}
	}
}
