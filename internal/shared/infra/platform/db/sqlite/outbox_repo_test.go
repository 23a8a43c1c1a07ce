package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/lendinglab/internal/shared/domain"
)

type stagedEvent struct {
	domain.EventMeta
	Aggregate uuid.UUID `json:"aggregate"`
	Label     string    `json:"label"`
}

func (e stagedEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e stagedEvent) EventType() string      { return "test.staged" }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, InitOutbox(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func staged(label string) domain.OutboxEvent {
	return domain.NewOutboxEvent("test", stagedEvent{
		EventMeta: domain.NewEventMeta(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Aggregate: uuid.New(),
		Label:     label,
	})
}

func TestOutboxRepoSQLite_OrdenDeInsercion(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepoSQLite(newTestDB(t))

	first, second, third := staged("a"), staged("b"), staged("c")
	require.NoError(t, repo.Stage(ctx, first, second))
	require.NoError(t, repo.Stage(ctx, third))

	pending, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, third.ID, pending[2].ID)
	assert.True(t, first.CreatedAt.Equal(pending[0].CreatedAt))
	assert.JSONEq(t, `{"event_id":"`+first.ID.String()+`","when":"2024-01-01T00:00:00Z","aggregate":"`+first.AggregateID+`","label":"a"}`,
		string(pending[0].Payload.(json.RawMessage)))
}

func TestOutboxRepoSQLite_LimitYMarcado(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepoSQLite(newTestDB(t))

	events := []domain.OutboxEvent{staged("a"), staged("b"), staged("c")}
	require.NoError(t, repo.Stage(ctx, events...))

	batch, err := repo.FetchPendingOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	require.NoError(t, repo.MarkOutboxPublished(ctx, []uuid.UUID{batch[0].ID, batch[1].ID}))

	rest, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, events[2].ID, rest[0].ID)
}

func TestOutboxRepoSQLite_IDDuplicadoRevierteTodo(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepoSQLite(newTestDB(t))

	dup := staged("a")
	require.NoError(t, repo.Stage(ctx, dup))

	err := repo.Stage(ctx, staged("b"), dup)
	require.Error(t, err)

	pending, err := repo.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "el lote fallido no deja eventos a medias")
}
