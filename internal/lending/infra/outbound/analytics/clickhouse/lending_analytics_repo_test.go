package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

func TestToRow_MapsLendingEvents(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	failed := domain.BookHoldFailed{
		EventMeta:       sharedDomain.NewEventMeta(now),
		Reason:          domain.ReasonMaximumHolds,
		PatronID:        domain.NewPatronID(),
		BookID:          domain.NewBookID(),
		LibraryBranchID: domain.NewLibraryBranchID(),
	}

	row, ok := toRow(failed)

	require.True(t, ok)
	assert.Equal(t, failed.EventID(), row.EventID)
	assert.Equal(t, domain.EventBookHoldFailed, row.EventType)
	assert.Equal(t, failed.BookID.UUID(), row.BookID)
	assert.Equal(t, domain.ReasonMaximumHolds, row.Reason)
	assert.Equal(t, now, row.OccurredAt)
}

func TestToRow_IgnoresNonLendingActivity(t *testing.T) {
	created := domain.NewPatronCreated(domain.PatronInformation{PatronID: domain.NewPatronID(), PatronType: domain.Regular}, time.Now())

	_, ok := toRow(created)

	assert.False(t, ok)
}

// Requiere un ClickHouse accesible en CLICKHOUSE_ADDR.
func TestLendingAnalyticsRepo_DailyActivity(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_ADDR no definido")
	}
	ctx := context.Background()
	repo, err := NewLendingAnalyticsRepo(addr, "default")
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.InitSchema(ctx))

	day := time.Now().UTC().Truncate(24 * time.Hour).Add(time.Hour)
	placed := domain.BookPlacedOnHold{
		EventMeta:       sharedDomain.NewEventMeta(day),
		PatronID:        domain.NewPatronID(),
		BookID:          domain.NewBookID(),
		LibraryBranchID: domain.NewLibraryBranchID(),
	}
	require.NoError(t, repo.Handle(ctx, placed))

	activity, err := repo.GetDailyActivity(ctx, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, activity)
	assert.GreaterOrEqual(t, activity[0].Holds, 1)
}
