// Package db defines the persistence contracts for the chats and users
// collections.
//
// The original deployment model is a single process writing whole
// collections at file granularity. The flat-file implementation keeps that
// layout but serializes every read-modify-write cycle behind a store-level
// mutex, so two concurrent mutations can no longer lose one writer's
// update. The sqlite implementation goes further and removes the
// whole-collection write entirely, persisting each chat as its own row
// inside a transaction.
package db

import (
	"errors"

	"github.com/rcallen/chatd/internal/models"
)

// ErrNotFound is returned by lookups for ids that resolve to nothing.
var ErrNotFound = errors.New("not found")

// ErrStorage wraps every I/O or deserialization failure on a persisted
// collection. A failed load never triggers a write, so previously durable
// state survives a corrupt read.
var ErrStorage = errors.New("storage error")

// ChatStore owns the on-disk representation of the chats collection.
//
// LoadAll and SaveAll operate on the whole collection; SaveAll is atomic,
// callers must treat it as all-or-nothing. Insert, Update and Delete run
// under the store's mutual exclusion so callers never perform an unguarded
// read-modify-write themselves.
type ChatStore interface {
	LoadAll() ([]models.Chat, error)
	SaveAll(chats []models.Chat) error
	FindByID(id string) (models.Chat, error)
	FindByOwner(owner string) ([]models.Chat, error)

	Insert(chat models.Chat) error
	// Update applies fn to the stored chat with the given id and persists
	// the result. fn returning an error aborts the write and the error is
	// passed through. An absent id yields ErrNotFound.
	Update(id string, fn func(*models.Chat) error) error
	// Delete removes the chat when both id and owner match; anything else
	// is a silent no-op.
	Delete(id, owner string) error
}

// UserStore owns the users collection: one root record plus the member
// list.
type UserStore interface {
	LoadUsers() (models.UserSet, error)
	// UpdateUsers applies fn to the current set and persists the result.
	// fn returning an error aborts the write.
	UpdateUsers(fn func(*models.UserSet) error) error
}
