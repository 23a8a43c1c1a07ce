package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/internal/shared/infra/utils"
)

type BookRepoSQLite struct {
	table aggregateTable
}

func NewBookRepoSQLite(db *sql.DB) *BookRepoSQLite {
	return &BookRepoSQLite{table: aggregateTable{db: db, table: "books"}}
}

func (r *BookRepoSQLite) Create(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	created, err := r.table.insert(ctx, book.ID().String(), state, events)
	if err != nil {
		return err
	}
	if !created {
		return domain.ErrBookAlreadyExists
	}
	return nil
}

func (r *BookRepoSQLite) FindByID(ctx context.Context, id domain.BookID) (domain.Book, error) {
	state, version, err := r.table.load(ctx, id.String())
	if isNoRows(err) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}

	var book domain.Book
	if err := utils.JSON.Unmarshal(state, &book); err != nil {
		return domain.Book{}, fmt.Errorf("invalid book state in DB for %s: %w", id, err)
	}
	return book.WithVersion(version), nil
}

func (r *BookRepoSQLite) Save(ctx context.Context, book domain.Book, events ...sharedDomain.OutboxEvent) error {
	state, err := utils.JSON.Marshal(book)
	if err != nil {
		return fmt.Errorf("marshal book: %w", err)
	}
	return r.table.update(ctx, book.ID().String(), state, book.Version(), events)
}

var _ domain.BookRepository = (*BookRepoSQLite)(nil)
