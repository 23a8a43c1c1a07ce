package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davicafu/lendinglab/internal/lending/domain"
)

// DailySheetRepoSQLite guarda la hoja diaria en sheet_holds y sheet_checkouts.
// Los plazos van en nanosegundos Unix para poder compararlos en SQL.
type DailySheetRepoSQLite struct {
	db *sql.DB
}

var _ domain.DailySheetRepository = (*DailySheetRepoSQLite)(nil)

func NewDailySheetRepoSQLite(db *sql.DB) *DailySheetRepoSQLite {
	return &DailySheetRepoSQLite{db: db}
}

func (r *DailySheetRepoSQLite) UpsertHold(ctx context.Context, hold domain.ExpiredHold) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sheet_holds (patron_id, book_id, branch_id, hold_till) VALUES (?, ?, ?, ?)
		ON CONFLICT(patron_id, book_id) DO UPDATE SET branch_id = excluded.branch_id, hold_till = excluded.hold_till`,
		hold.PatronID.String(), hold.BookID.String(), hold.LibraryBranchID.String(), hold.HoldTill.UnixNano(),
	)
	return err
}

func (r *DailySheetRepoSQLite) RemoveHold(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sheet_holds WHERE patron_id = ? AND book_id = ?`, patronID.String(), bookID.String())
	return err
}

func (r *DailySheetRepoSQLite) UpsertCheckout(ctx context.Context, checkout domain.OverdueCheckout) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sheet_checkouts (patron_id, book_id, branch_id, till) VALUES (?, ?, ?, ?)
		ON CONFLICT(patron_id, book_id) DO UPDATE SET branch_id = excluded.branch_id, till = excluded.till`,
		checkout.PatronID.String(), checkout.BookID.String(), checkout.LibraryBranchID.String(), checkout.Till.UnixNano(),
	)
	return err
}

func (r *DailySheetRepoSQLite) RemoveCheckout(ctx context.Context, patronID domain.PatronID, bookID domain.BookID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sheet_checkouts WHERE patron_id = ? AND book_id = ?`, patronID.String(), bookID.String())
	return err
}

func (r *DailySheetRepoSQLite) HoldsToExpire(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT patron_id, book_id, branch_id, hold_till FROM sheet_holds WHERE hold_till < ? ORDER BY hold_till`,
		now.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ExpiredHold
	for rows.Next() {
		var hold domain.ExpiredHold
		var till int64
		hold.PatronID, hold.BookID, hold.LibraryBranchID, err = scanSheetRow(rows, &till)
		if err != nil {
			return nil, err
		}
		hold.HoldTill = time.Unix(0, till).UTC()
		out = append(out, hold)
	}
	return out, rows.Err()
}

func (r *DailySheetRepoSQLite) CheckoutsToOverdue(ctx context.Context, now time.Time) ([]domain.OverdueCheckout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT patron_id, book_id, branch_id, till FROM sheet_checkouts WHERE till < ? ORDER BY till`,
		now.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OverdueCheckout
	for rows.Next() {
		var checkout domain.OverdueCheckout
		var till int64
		checkout.PatronID, checkout.BookID, checkout.LibraryBranchID, err = scanSheetRow(rows, &till)
		if err != nil {
			return nil, err
		}
		checkout.Till = time.Unix(0, till).UTC()
		out = append(out, checkout)
	}
	return out, rows.Err()
}

func scanSheetRow(rows *sql.Rows, till *int64) (domain.PatronID, domain.BookID, domain.LibraryBranchID, error) {
	var patronStr, bookStr, branchStr string
	if err := rows.Scan(&patronStr, &bookStr, &branchStr, till); err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, err
	}
	patronID, err := domain.ParsePatronID(patronStr)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid patron_id in daily sheet: %w", err)
	}
	bookID, err := domain.ParseBookID(bookStr)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid book_id in daily sheet: %w", err)
	}
	branchID, err := domain.ParseLibraryBranchID(branchStr)
	if err != nil {
		return domain.PatronID{}, domain.BookID{}, domain.LibraryBranchID{}, fmt.Errorf("invalid branch_id in daily sheet: %w", err)
	}
	return patronID, bookID, branchID, nil
}
