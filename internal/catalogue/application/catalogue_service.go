package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	"github.com/davicafu/lendinglab/internal/shared/clock"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	sharedCache "github.com/davicafu/lendinglab/internal/shared/infra/platform/cache"
)

const bookCacheTTL = 5 * time.Minute

// CatalogueService da de alta títulos y ejemplares. Cada ejemplar nuevo se anuncia
// con BookInstanceAddedToCatalogue para que lending cree el libro disponible.
type CatalogueService struct {
	repo  domain.CatalogueRepository
	cache sharedCache.Cache
	clock clock.Clock
	log   *zap.Logger
}

func NewCatalogueService(repo domain.CatalogueRepository, cache sharedCache.Cache, clk clock.Clock, log *zap.Logger) *CatalogueService {
	return &CatalogueService{repo: repo, cache: cache, clock: clk, log: log}
}

func (s *CatalogueService) AddBook(ctx context.Context, isbn, title, author string) (domain.Book, error) {
	book, err := domain.NewBook(isbn, title, author)
	if err != nil {
		return domain.Book{}, err
	}
	if err := s.repo.AddBook(ctx, book); err != nil {
		return domain.Book{}, err
	}

	sharedCache.SetInBackground(s.cache, domain.CacheKeyByISBN(book.ISBN), book, bookCacheTTL, s.log)
	s.log.Info("📖 Título añadido al catálogo", zap.String("isbn", book.ISBN.String()))
	return book, nil
}

func (s *CatalogueService) AddBookInstance(ctx context.Context, isbn string, bookType domain.BookType) (domain.BookInstance, error) {
	book, err := s.FindBook(ctx, isbn)
	if err != nil {
		return domain.BookInstance{}, err
	}

	instance, err := domain.InstanceOf(book, bookType)
	if err != nil {
		return domain.BookInstance{}, err
	}

	evt := domain.NewBookInstanceAddedToCatalogue(instance, s.clock.Now())
	if err := s.repo.AddInstance(ctx, instance, sharedDomain.NewOutboxEvent(domain.BookAggregate, evt)); err != nil {
		return domain.BookInstance{}, err
	}

	s.log.Info("🆕 Ejemplar añadido al catálogo",
		zap.String("isbn", instance.ISBN.String()),
		zap.String("book_id", instance.BookID.String()),
		zap.String("type", string(instance.BookType)))
	return instance, nil
}

// FindBook consulta primero la caché y la rellena en background tras un miss.
func (s *CatalogueService) FindBook(ctx context.Context, isbn string) (domain.Book, error) {
	parsed, err := domain.ParseISBN(isbn)
	if err != nil {
		return domain.Book{}, err
	}

	return sharedCache.Lookup(ctx, s.cache, domain.CacheKeyByISBN(parsed), bookCacheTTL, s.log,
		func(ctx context.Context) (domain.Book, error) {
			return s.repo.FindBook(ctx, parsed)
		})
}

func (s *CatalogueService) Instances(ctx context.Context, isbn string) ([]domain.BookInstance, error) {
	parsed, err := domain.ParseISBN(isbn)
	if err != nil {
		return nil, err
	}
	return s.repo.Instances(ctx, parsed)
}
