package domain

import (
	"context"
	"fmt"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

// CatalogueRepository guarda fichas y ejemplares.
type CatalogueRepository interface {
	// Debe devolver ErrBookAlreadyExists si el ISBN ya está dado de alta.
	AddBook(ctx context.Context, book Book) error

	// Debe devolver ErrBookNotFound si no existe.
	FindBook(ctx context.Context, isbn ISBN) (Book, error)

	// AddInstance guarda el ejemplar y sus eventos en la misma transacción.
	AddInstance(ctx context.Context, instance BookInstance, events ...sharedDomain.OutboxEvent) error

	// Instances devuelve los ejemplares de un título en orden de alta.
	Instances(ctx context.Context, isbn ISBN) ([]BookInstance, error)
}

func CacheKeyByISBN(isbn ISBN) string {
	return fmt.Sprintf("catalogue:isbn:%s", isbn)
}
