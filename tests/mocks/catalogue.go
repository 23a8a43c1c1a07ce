package mocks

import (
	"context"
	"sync"

	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// InMemoryCatalogueRepo implementa domain.CatalogueRepository y cuenta lecturas.
type InMemoryCatalogueRepo struct {
	mu        sync.Mutex
	books     map[domain.ISBN]domain.Book
	instances map[domain.ISBN][]domain.BookInstance
	outbox    *InMemoryOutbox
	Finds     int
}

var _ domain.CatalogueRepository = (*InMemoryCatalogueRepo)(nil)

func NewInMemoryCatalogueRepo(outbox *InMemoryOutbox) *InMemoryCatalogueRepo {
	return &InMemoryCatalogueRepo{
		books:     map[domain.ISBN]domain.Book{},
		instances: map[domain.ISBN][]domain.BookInstance{},
		outbox:    outbox,
	}
}

func (r *InMemoryCatalogueRepo) AddBook(ctx context.Context, book domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.ISBN]; ok {
		return domain.ErrBookAlreadyExists
	}
	r.books[book.ISBN] = book
	return nil
}

func (r *InMemoryCatalogueRepo) FindBook(ctx context.Context, isbn domain.ISBN) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Finds++
	book, ok := r.books[isbn]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

func (r *InMemoryCatalogueRepo) AddInstance(ctx context.Context, instance domain.BookInstance, events ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.ISBN] = append(r.instances[instance.ISBN], instance)
	return r.outbox.Stage(ctx, events...)
}

func (r *InMemoryCatalogueRepo) Instances(ctx context.Context, isbn domain.ISBN) ([]domain.BookInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BookInstance(nil), r.instances[isbn]...), nil
}
