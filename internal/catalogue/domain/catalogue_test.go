package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISBN(t *testing.T) {
	tests := []struct {
		input string
		want  ISBN
		err   error
	}{
		{"0321125215", "0321125215", nil},
		{"  032112521X ", "032112521X", nil},
		{"032112521|", "032112521|", nil},
		{"03211252", "", ErrInvalidISBN},
		{"abcdefghij", "", ErrInvalidISBN},
		{"03211252155", "", ErrInvalidISBN},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseISBN(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBook(t *testing.T) {
	book, err := NewBook("0321125215", "  Domain-Driven Design ", " Eric Evans")
	require.NoError(t, err)
	assert.Equal(t, "Domain-Driven Design", book.Title)
	assert.Equal(t, "Eric Evans", book.Author)

	_, err = NewBook("0321125215", " ", "Eric Evans")
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = NewBook("0321125215", "DDD", "")
	assert.ErrorIs(t, err, ErrEmptyAuthor)
}

func TestInstanceOf(t *testing.T) {
	book, err := NewBook("0321125215", "DDD", "Evans")
	require.NoError(t, err)

	instance, err := InstanceOf(book, Restricted)
	require.NoError(t, err)
	assert.Equal(t, book.ISBN, instance.ISBN)

	evt := NewBookInstanceAddedToCatalogue(instance, time.Now())
	assert.Equal(t, instance.BookID, evt.AggregateID())
	assert.Equal(t, EventBookInstanceAddedToCatalogue, evt.EventType())

	_, err = InstanceOf(book, "Digital")
	assert.ErrorIs(t, err, ErrInvalidBookType)
}
