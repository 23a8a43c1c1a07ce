package postgre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedPostgres "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/postgres"
)

type CatalogueRepoPostgres struct {
	db *sql.DB
}

func NewCatalogueRepoPostgres(db *sql.DB) *CatalogueRepoPostgres {
	return &CatalogueRepoPostgres{db: db}
}

func (r *CatalogueRepoPostgres) AddBook(ctx context.Context, book domain.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO catalogue_book (isbn, title, author) VALUES ($1, $2, $3)`,
		book.ISBN.String(), book.Title, book.Author,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrBookAlreadyExists
	}
	return err
}

func (r *CatalogueRepoPostgres) FindBook(ctx context.Context, isbn domain.ISBN) (domain.Book, error) {
	var book domain.Book
	var isbnStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT isbn, title, author FROM catalogue_book WHERE isbn = $1`, isbn.String(),
	).Scan(&isbnStr, &book.Title, &book.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.ErrBookNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}
	book.ISBN = domain.ISBN(isbnStr)
	return book, nil
}

func (r *CatalogueRepoPostgres) AddInstance(ctx context.Context, instance domain.BookInstance, events ...sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalogue_book_instance (book_id, isbn, book_type) VALUES ($1, $2, $3)`,
		instance.BookID, instance.ISBN.String(), string(instance.BookType),
	); err != nil {
		return fmt.Errorf("insert book instance: %w", err)
	}

	if err := sharedPostgres.InsertOutboxTx(ctx, tx, events...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CatalogueRepoPostgres) Instances(ctx context.Context, isbn domain.ISBN) ([]domain.BookInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT book_id, isbn, book_type FROM catalogue_book_instance WHERE isbn = $1 ORDER BY seq`, isbn.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []domain.BookInstance
	for rows.Next() {
		var instance domain.BookInstance
		var isbnStr, bookType string
		if err := rows.Scan(&instance.BookID, &isbnStr, &bookType); err != nil {
			return nil, err
		}
		instance.ISBN = domain.ISBN(isbnStr)
		instance.BookType = domain.BookType(bookType)
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// InitPostgres crea las tablas del catálogo y la de outbox si no existen.
func InitPostgres(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalogue_book (
			isbn TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS catalogue_book_instance (
			seq BIGSERIAL PRIMARY KEY,
			book_id UUID NOT NULL UNIQUE,
			isbn TEXT NOT NULL REFERENCES catalogue_book(isbn),
			book_type TEXT NOT NULL
		);
	`); err != nil {
		return err
	}
	return sharedPostgres.InitOutbox(ctx, db)
}

var _ domain.CatalogueRepository = (*CatalogueRepoPostgres)(nil)
