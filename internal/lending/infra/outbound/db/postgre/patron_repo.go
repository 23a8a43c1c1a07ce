package postgre

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

type PatronRepoPostgres struct {
	table aggregateTable
}

func NewPatronRepoPostgres(db *sql.DB) *PatronRepoPostgres {
	return &PatronRepoPostgres{table: aggregateTable{db: db, table: "patrons"}}
}

func (r *PatronRepoPostgres) Create(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(patron.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal patron: %w", err)
	}
	created, err := r.table.insert(ctx, patron.ID().String(), state, events)
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrPatronAlreadyExists
	}
	return nil
}

func (r *PatronRepoPostgres) FindByID(ctx context.Context, id domain.PatronID) (domain.Patron, error) {
	state, version, err := r.table.load(ctx, id.String())
	if isNoRows(err) {
		return domain.Patron{}, domain.ErrPatronNotFound
	}
	if err != nil {
		return domain.Patron{}, err
	}

	var snapshot domain.PatronSnapshot
	if err := utils.JSON.Unmarshal(state, &snapshot); err != nil {
		return domain.Patron{}, fmt.Errorf("invalid patron state in DB for %s: %w", id, err)
	}
	return domain.RestorePatron(snapshot, version), nil
}

func (r *PatronRepoPostgres) Save(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(patron.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal patron: %w", err)
	}
	return r.table.update(ctx, patron.ID().String(), state, patron.Version(), events)
}

var _ domain.PatronRepository = (*PatronRepoPostgres)(nil)
