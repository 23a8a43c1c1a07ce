package mocks

import (
	"context"
	"sync"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// InMemoryBookRepo implementa domain.BookRepository con bloqueo optimista.
type InMemoryBookRepo struct {
	mu     sync.Mutex
	books  map[domain.BookID]domain.Book
	outbox *InMemoryOutbox
	// SaveErr, si no es nil, se devuelve en el siguiente Save y se limpia.
	SaveErr error
}

var _ domain.BookRepository = (*InMemoryBookRepo)(nil)

func NewInMemoryBookRepo(outbox *InMemoryOutbox) *InMemoryBookRepo {
	return &InMemoryBookRepo{books: map[domain.BookID]domain.Book{}, outbox: outbox}
}

func (r *InMemoryBookRepo) Create(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[book.ID()]; ok {
		return domain.ErrBookAlreadyExists
	}
	r.books[book.ID()] = book.WithVersion(0)
	return r.outbox.Stage(ctx, events...)
}

func (r *InMemoryBookRepo) FindByID(ctx context.Context, id domain.BookID) (domain.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book, ok := r.books[id]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

func (r *InMemoryBookRepo) Save(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		err := r.SaveErr
		r.SaveErr = nil
		return err
	}
	stored, ok := r.books[book.ID()]
	if !ok || stored.Version() != book.Version() {
		return sharedDomain.ErrConcurrencyConflict
	}
	r.books[book.ID()] = book.WithVersion(book.Version().Next())
	return r.outbox.Stage(ctx, events...)
}

// InMemoryPatronRepo implementa domain.PatronRepository con bloqueo optimista.
type InMemoryPatronRepo struct {
	mu      sync.Mutex
	patrons map[domain.PatronID]domain.PatronSnapshot
	version map[domain.PatronID]sharedDomain.Version
	outbox  *InMemoryOutbox
	SaveErr error
}

var _ domain.PatronRepository = (*InMemoryPatronRepo)(nil)

func NewInMemoryPatronRepo(outbox *InMemoryOutbox) *InMemoryPatronRepo {
	return &InMemoryPatronRepo{
		patrons: map[domain.PatronID]domain.PatronSnapshot{},
		version: map[domain.PatronID]sharedDomain.Version{},
		outbox:  outbox,
	}
}

func (r *InMemoryPatronRepo) Create(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patrons[patron.ID()]; ok {
		return domain.ErrPatronAlreadyExists
	}
	r.patrons[patron.ID()] = patron.Snapshot()
	r.version[patron.ID()] = 0
	return r.outbox.Stage(ctx, events...)
}

func (r *InMemoryPatronRepo) FindByID(ctx context.Context, id domain.PatronID) (domain.Patron, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.patrons[id]
	if !ok {
		return domain.Patron{}, domain.ErrPatronNotFound
	}
	return domain.RestorePatron(snapshot, r.version[id]), nil
}

func (r *InMemoryPatronRepo) Save(ctx context.Context, patron domain.Patron, events ...sharedDomain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		err := r.SaveErr
		r.SaveErr = nil
		return err
	}
	current, ok := r.version[patron.ID()]
	if !ok || current != patron.Version() {
		return sharedDomain.ErrConcurrencyConflict
	}
	r.patrons[patron.ID()] = patron.Snapshot()
	r.version[patron.ID()] = current.Next()
	return r.outbox.Stage(ctx, events...)
}
