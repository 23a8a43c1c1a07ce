package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
)

var (
	ErrInvalidISBN       = errors.New("wrong ISBN")
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrEmptyAuthor       = errors.New("author cannot be empty")
	ErrInvalidBookType   = errors.New("invalid book type")
	ErrBookNotFound      = errors.New("catalogue book not found")
	ErrBookAlreadyExists = errors.New("catalogue book already exists")
)

// Comprobación mínima: 9 dígitos y un dígito o X final.
var isbnPattern = regexp.MustCompile(`^\d{9}[\d|X]$`)

type ISBN string

func ParseISBN(s string) (ISBN, error) {
	trimmed := strings.TrimSpace(s)
	if !isbnPattern.MatchString(trimmed) {
		return "", ErrInvalidISBN
	}
	return ISBN(trimmed), nil
}

func (i ISBN) String() string { return string(i) }

type BookType string

const (
	Restricted  BookType = "Restricted"
	Circulating BookType = "Circulating"
)

func (t BookType) Valid() bool { return t == Restricted || t == Circulating }

// Book es la ficha de catálogo de un título.
type Book struct {
	ISBN   ISBN   `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

func NewBook(isbn, title, author string) (Book, error) {
	parsed, err := ParseISBN(isbn)
	if err != nil {
		return Book{}, err
	}
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" {
		return Book{}, ErrEmptyTitle
	}
	if author == "" {
		return Book{}, ErrEmptyAuthor
	}
	return Book{ISBN: parsed, Title: title, Author: author}, nil
}

// BookInstance es un ejemplar físico de un título.
type BookInstance struct {
	ISBN     ISBN      `json:"isbn"`
	BookID   uuid.UUID `json:"book_id"`
	BookType BookType  `json:"book_type"`
}

func InstanceOf(book Book, bookType BookType) (BookInstance, error) {
	if !bookType.Valid() {
		return BookInstance{}, ErrInvalidBookType
	}
	return BookInstance{ISBN: book.ISBN, BookID: uuid.New(), BookType: bookType}, nil
}

// ---------- Eventos ----------

const (
	CatalogueTopic                    = "catalogue"
	BookAggregate                     = "catalogue_book"
	EventBookInstanceAddedToCatalogue = "catalogue.book_instance_added"
)

type BookInstanceAddedToCatalogue struct {
	sharedDomain.EventMeta
	ISBN     ISBN      `json:"isbn"`
	BookID   uuid.UUID `json:"book_id"`
	BookType BookType  `json:"book_type"`
}

func NewBookInstanceAddedToCatalogue(instance BookInstance, when time.Time) BookInstanceAddedToCatalogue {
	return BookInstanceAddedToCatalogue{
		EventMeta: sharedDomain.NewEventMeta(when),
		ISBN:      instance.ISBN,
		BookID:    instance.BookID,
		BookType:  instance.BookType,
	}
}

func (e BookInstanceAddedToCatalogue) AggregateID() uuid.UUID { return e.BookID }
func (BookInstanceAddedToCatalogue) EventType() string       { return EventBookInstanceAddedToCatalogue }
