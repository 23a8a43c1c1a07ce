package postgre

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/lendinglab/internal/lending/domain"
)

// DailySheetRepoPostgres guarda la hoja diaria en sheet_holds y sheet_checkouts.
type DailySheetRepoPostgres struct {
	db *sql.DB
}

var _ domain.DailySheetRepository = (*DailySheetRepoPostgres)(nil)

func NewDailySheetRepoPostgres(db *sql.DB) *DailySheetRepoPostgres {
	return &DailySheetRepoPostgres{db: db}
}

func (r *DailySheetRepoPostgres) UpsertHold(ctx context.Context, hold domain.ExpiredHold) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sheet_holds (patron_id, book_id, branch_id, hold_till) VALUES ($1, $2, $3, $4)
		ON CONFLICT (patron_id, book_id) DO UPDATE SET branch_id = EXCLUDED.branch_id, hold_till = EXCLUDED.hold_till`,
		hold.PatronID.UUID(), hold.BookID.UUID(), hold.LibraryBranchID.UUID(), hold.HoldTill.UTC(),
	)
	return err
}

func (r *DailySheetRepoPostgres) RemoveHold(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sheet_holds WHERE patron_id = $1 AND book_id = $2`, patronID.UUID(), bookID.UUID())
	return err
}

func (r *DailySheetRepoPostgres) UpsertCheckout(ctx context.Context, checkout domain.OverdueCheckout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sheet_checkouts (patron_id, book_id, branch_id, till) VALUES ($1, $2, $3, $4)
		ON CONFLICT (patron_id, book_id) DO UPDATE SET branch_id = EXCLUDED.branch_id, till = EXCLUDED.till`,
		checkout.PatronID.UUID(), checkout.BookID.UUID(), checkout.LibraryBranchID.UUID(), checkout.Till.UTC(),
	)
	return err
}

func (r *DailySheetRepoPostgres) RemoveCheckout(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sheet_checkouts WHERE patron_id = $1 AND book_id = $2`, patronID.UUID(), bookID.UUID())
	return err
}

func (r *DailySheetRepoPostgres) HoldsToExpire(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT patron_id, book_id, branch_id, hold_till FROM sheet_holds WHERE hold_till < $1 ORDER BY hold_till`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query sheet_holds: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpiredHold
	for rows.Next() {
		var patronID, bookID, branchID uuid.UUID
		var till time.Time
		if err := rows.Scan(&patronID, &bookID, &branchID, &till); err != nil {
			return nil, err
		}
		out = append(out, domain.ExpiredHold{
			PatronID:        domain.PatronID(patronID),
			BookID:          domain.BookID(bookID),
			LibraryBranchID: domain.LibraryBranchID(branchID),
			HoldTill:        till.UTC(),
		})
	}
	return out, rows.Err()
}

func (r *DailySheetRepoPostgres) CheckoutsToOverdue(ctx context.Context, now time.Time) ([]domain.OverdueCheckout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT patron_id, book_id, branch_id, till FROM sheet_checkouts WHERE till < $1 ORDER BY till`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query sheet_checkouts: %w", err)
	}
	defer rows.Close()

	var out []domain.OverdueCheckout
	for rows.Next() {
		var patronID, bookID, branchID uuid.UUID
		var till time.Time
		if err := rows.Scan(&patronID, &bookID, &branchID, &till); err != nil {
			return nil, err
		}
		out = append(out, domain.OverdueCheckout{
			PatronID:        domain.PatronID(patronID),
			BookID:          domain.BookID(bookID),
			LibraryBranchID: domain.LibraryBranchID(branchID),
			Till:            till.UTC(),
		})
	}
	return out, rows.Err()
}
