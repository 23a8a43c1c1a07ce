package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedSQLite "github.com/davicafu/lendinglab/internal/shared/infra/platform/db/sqlite"
)

type CatalogueRepoSQLite struct {
	db *sql.DB
}

func NewCatalogueRepoSQLite(db *sql.DB) *CatalogueRepoSQLite {
	return &CatalogueRepoSQLite{db: db}
}

func (r *CatalogueRepoSQLite) AddBook(ctx context.Context, book domain.Book) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO catalogue_book (isbn, title, author) VALUES (?, ?, ?) ON CONFLICT(isbn) DO NOTHING`,
		book.ISBN.String(), book.Title, book.Author,
	)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrBookAlreadyExists
	}
	return nil
}

func (r *CatalogueRepoSQLite) FindBook(ctx context.Context, isbn domain.ISBN) (domain.Book, error) {
	var book domain.Book
	var isbnStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT isbn, title, author FROM catalogue_book WHERE isbn = ?`, isbn.String(),
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

// AddInstance guarda ejemplar y evento en una transacción.
func (r *CatalogueRepoSQLite) AddInstance(ctx context.Context, instance domain.BookInstance, events ...sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalogue_book_instance (book_id, isbn, book_type) VALUES (?, ?, ?)`,
		instance.BookID.String(), instance.ISBN.String(), string(instance.BookType),
	); err != nil {
		return fmt.Errorf("insert book instance: %w", err)
	}

	if err := sharedSQLite.InsertOutboxTx(ctx, tx, events...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *CatalogueRepoSQLite) Instances(ctx context.Context, isbn domain.ISBN) ([]domain.BookInstance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT book_id, isbn, book_type FROM catalogue_book_instance WHERE isbn = ? ORDER BY seq`, isbn.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []domain.BookInstance
	for rows.Next() {
		var idStr, isbnStr, bookType string
		if err := rows.Scan(&idStr, &isbnStr, &bookType); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		instances = append(instances, domain.BookInstance{ISBN: domain.ISBN(isbnStr), BookID: id, BookType: domain.BookType(bookType)})
	}
	return instances, rows.Err()
}

// InitSQLite crea las tablas del catálogo y la de outbox si no existen.
func InitSQLite(db *sql.DB) error {
	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS catalogue_book (
            isbn TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL
        )
    `); err != nil {
		return err
	}
	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS catalogue_book_instance (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id TEXT NOT NULL UNIQUE,
            isbn TEXT NOT NULL REFERENCES catalogue_book(isbn),
            book_type TEXT NOT NULL
        )
    `); err != nil {
		return err
	}
	return sharedSQLite.InitOutbox(db)
}

var _ domain.CatalogueRepository = (*CatalogueRepoSQLite)(nil)
