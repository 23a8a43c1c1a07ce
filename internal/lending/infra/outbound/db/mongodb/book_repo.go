package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

// BookRepoMongoDB implementa domain.BookRepository sobre MongoDB (requiere replica set).
type BookRepoMongoDB struct {
	store aggregateCollection
}

func NewBookRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*BookRepoMongoDB, error) {
	store, err := newAggregateCollection(ctx, client, dbName, "books")
	if err != nil {
		return nil, err
	}
	return &BookRepoMongoDB{store: store}, nil
}

func (r *BookRepoMongoDB) Create(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	created, err := r.store.insert(ctx, book.ID().String(), state, events)
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrBookAlreadyExists
	}
	return nil
}

func (r *BookRepoMongoDB) FindByID(ctx context.Context, id domain.BookID) (domain.Book, error) {
	state, version, err := r.store.load(ctx, id.String())
	if isNoDocuments(err) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}
	var book domain.Book
	if err := utils.JSON.Unmarshal(state, &book); err != nil {
		return domain.Book{}, fmt.Errorf("invalid book document %s: %w", id, err)
	}
	return book.WithVersion(version), nil
}

func (r *BookRepoMongoDB) Save(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	return r.store.update(ctx, book.ID().String(), state, book.Version(), events)
}

var _ domain.BookRepository = (*BookRepoMongoDB)(nil)
