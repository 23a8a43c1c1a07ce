package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
)

// LendingAnalyticsRepo guarda en ClickHouse un registro por evento de préstamo reenviado.
type LendingAnalyticsRepo struct {
	db *sql.DB
}

func NewLendingAnalyticsRepo(addr string, dbName string) (*LendingAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &LendingAnalyticsRepo{db: conn}, nil
}

// activityRow es la fila de lending_events_log.
type activityRow struct {
	EventID    uuid.UUID
	EventType  string
	PatronID   uuid.UUID
	BookID     uuid.UUID
	BranchID   uuid.UUID
	Reason     string
	OccurredAt time.Time
}

// toRow devuelve false para los eventos que no se registran.
func toRow(event sharedDomain.DomainEvent) (activityRow, bool) {
	row := activityRow{EventID: event.EventID(), EventType: event.EventType(), OccurredAt: event.OccurredAt()}

	switch e := event.(type) {
	case domain.BookPlacedOnHold:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	case domain.BookHoldFailed:
		row.PatronID, row.BookID, row.BranchID, row.Reason = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID(), e.Reason
	case domain.BookHoldCanceled:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	case domain.BookHoldExpired:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	case domain.BookCheckedOut:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	case domain.BookCheckingOutFailed:
		row.PatronID, row.BookID, row.BranchID, row.Reason = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID(), e.Reason
	case domain.BookReturned:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	case domain.OverdueCheckoutRegistered:
		row.PatronID, row.BookID, row.BranchID = e.PatronID.UUID(), e.BookID.UUID(), e.LibraryBranchID.UUID()
	default:
		return activityRow{}, false
	}
	return row, true
}

// Handle registra el evento. La tabla es ReplacingMergeTree por event_id, así que
// una redelivery acaba colapsada en una sola fila.
func (r *LendingAnalyticsRepo) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	row, ok := toRow(event)
	if !ok {
		return nil
	}
	return r.LogBatch(ctx, []activityRow{row})
}

// LogBatch inserta un lote de filas en una sola transacción.
func (r *LendingAnalyticsRepo) LogBatch(ctx context.Context, rows []activityRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO lending_events_log (event_id, event_type, patron_id, book_id, branch_id, reason, occurred_at)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.EventID, row.EventType, row.PatronID, row.BookID, row.BranchID, row.Reason, row.OccurredAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", row.EventID, err)
		}
	}
	return tx.Commit()
}

func (r *LendingAnalyticsRepo) GetDailyActivity(ctx context.Context, start, end time.Time) ([]domain.DailyLendingActivity, error) {
	query := `
		SELECT
			toStartOfDay(occurred_at) AS day,
			countIf(event_type = ?) AS holds,
			countIf(event_type = ?) AS checkouts,
			countIf(event_type = ?) AS returns,
			countIf(event_type IN (?, ?)) AS rejections
		FROM lending_events_log FINAL
		WHERE occurred_at BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query,
		domain.EventBookPlacedOnHold,
		domain.EventBookCheckedOut,
		domain.EventBookReturned,
		domain.EventBookHoldFailed, domain.EventBookCheckingOutFailed,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []domain.DailyLendingActivity
	for rows.Next() {
		var day domain.DailyLendingActivity
		var holds, checkouts, returns, rejections uint64
		if err := rows.Scan(&day.Day, &holds, &checkouts, &returns, &rejections); err != nil {
			return nil, err
		}
		day.Holds, day.Checkouts, day.Returns, day.Rejections = int(holds), int(checkouts), int(returns), int(rejections)
		activity = append(activity, day)
	}
	return activity, rows.Err()
}

// InitSchema crea la tabla en ClickHouse si no existe.
func (r *LendingAnalyticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS lending_events_log (
			event_id    UUID,
			event_type  LowCardinality(String),
			patron_id   UUID,
			book_id     UUID,
			branch_id   UUID,
			reason      String,
			occurred_at DateTime64(3)
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(occurred_at)
		ORDER BY (event_id);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *LendingAnalyticsRepo) Close() error {
	return r.db.Close()
}

var (
	_ domain.LendingAnalyticsRepository = (*LendingAnalyticsRepo)(nil)
	_ sharedBus.Subscriber              = (*LendingAnalyticsRepo)(nil)
)
