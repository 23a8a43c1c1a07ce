package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

type PatronRepoMongoDB struct {
	store aggregateCollection
}

func NewPatronRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*PatronRepoMongoDB, error) {
	store, err := newAggregateCollection(ctx, client, dbName, "patrons")
	if err != nil {
		return nil, err
	}
	return &PatronRepoMongoDB{store: store}, nil
}

func (r *PatronRepoMongoDB) Create(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(patron.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal patron: %w", err)
	}
	created, err := r.store.insert(ctx, patron.ID().String(), state, events)
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrPatronAlreadyExists
	}
	return nil
}

func (r *PatronRepoMongoDB) FindByID(ctx context.Context, id domain.PatronID) (domain.Patron, error) {
	state, version, err := r.store.load(ctx, id.String())
	if isNoDocuments(err) {
		return domain.Patron{}, domain.ErrPatronNotFound
	}
	if err != nil {
		return domain.Patron{}, err
	}
	var snapshot domain.PatronSnapshot
	if err := utils.JSON.Unmarshal(state, &snapshot); err != nil {
		return domain.Patron{}, fmt.Errorf("invalid patron document %s: %w", id, err)
	}
	return domain.RestorePatron(snapshot, version), nil
}

func (r *PatronRepoMongoDB) Save(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(patron.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal patron: %w", err)
	}
	return r.store.update(ctx, patron.ID().String(), state, patron.Version(), events)
}

var _ domain.PatronRepository = (*PatronRepoMongoDB)(nil)
