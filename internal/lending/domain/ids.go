package domain

import "github.com/google/uuid"

// BookID identifica un ejemplar concreto.
type BookID uuid.UUID

// PatronID identifica a un lector.
type PatronID uuid.UUID

// LibraryBranchID identifica una sucursal de la biblioteca.
type LibraryBranchID uuid.UUID

func NewBookID() BookID                   { return BookID(uuid.New()) }
func NewPatronID() PatronID               { return PatronID(uuid.New()) }
func NewLibraryBranchID() LibraryBranchID { return LibraryBranchID(uuid.New()) }

func ParseBookID(s string) (BookID, error) {
	id, err := uuid.Parse(s)
	return BookID(id), err
}

func ParsePatronID(s string) (PatronID, error) {
	id, err := uuid.Parse(s)
	return PatronID(id), err
}

func ParseLibraryBranchID(s string) (LibraryBranchID, error) {
	id, err := uuid.Parse(s)
	return LibraryBranchID(id), err
}

func (id BookID) UUID() uuid.UUID   { return uuid.UUID(id) }
func (id BookID) String() string    { return uuid.UUID(id).String() }
func (id PatronID) UUID() uuid.UUID { return uuid.UUID(id) }
func (id PatronID) String() string  { return uuid.UUID(id).String() }

func (id LibraryBranchID) UUID() uuid.UUID { return uuid.UUID(id) }
func (id LibraryBranchID) String() string  { return uuid.UUID(id).String() }

func (id BookID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id *BookID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id PatronID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id *PatronID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id LibraryBranchID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *LibraryBranchID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// BookType no cambia nunca para un mismo BookID.
type BookType string

const (
	Restricted  BookType = "Restricted"
	Circulating BookType = "Circulating"
)

func (t BookType) Valid() bool {
	return t == Restricted || t == Circulating
}

// BookInformation es la parte inmutable de un libro.
type BookInformation struct {
	BookID   BookID   `json:"book_id"`
	BookType BookType `json:"book_type"`
}

// PatronType determina los privilegios del lector.
type PatronType string

const (
	Regular    PatronType = "Regular"
	Researcher PatronType = "Researcher"
)

func (t PatronType) Valid() bool {
	return t == Regular || t == Researcher
}

// PatronInformation es la parte inmutable de un lector.
type PatronInformation struct {
	PatronID   PatronID   `json:"patron_id"`
	PatronType PatronType `json:"patron_type"`
}

func (p PatronInformation) IsRegular() bool {
	return p.PatronType == Regular
}
