package application

import (
	"context"
	"errors"

	"go.uber.org/zap"

	catalogueDomain "github.com/davicafu/lendinglab/internal/catalogue/domain"
	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedBus "github.com/davicafu/lendinglab/internal/shared/infra/platform/bus"
)

// CatalogueEventsHandler crea en lending un libro disponible por cada ejemplar
// dado de alta en el catálogo.
type CatalogueEventsHandler struct {
	books  domain.BookRepository
	branch domain.LibraryBranchID
	log    *zap.Logger
}

var _ sharedBus.Subscriber = (*CatalogueEventsHandler)(nil)

func NewCatalogueEventsHandler(books domain.BookRepository, branch domain.LibraryBranchID, log *zap.Logger) *CatalogueEventsHandler {
	return &CatalogueEventsHandler{books: books, branch: branch, log: log}
}

func (h *CatalogueEventsHandler) Handle(ctx context.Context, event sharedDomain.DomainEvent) error {
	e, ok := event.(catalogueDomain.BookInstanceAddedToCatalogue)
	if !ok {
		return nil
	}

	info := domain.BookInformation{BookID: domain.BookID(e.BookID), BookType: domain.BookType(e.BookType)}
	err := h.books.Create(ctx, domain.NewAvailableBook(info, h.branch))
	if errors.Is(err, domain.ErrBookAlreadyExists) {
		return nil
	}
	if err != nil {
		return err
	}

	h.log.Info("📗 Libro disponible en préstamo",
		zap.String("book_id", e.BookID.String()),
		zap.String("isbn", e.ISBN.String()),
		zap.String("branch", h.branch.String()))
	return nil
}
