package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Note is a named piece of plain text.
type Note struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Store represents a collection of notes addressed by name.
type Store interface {
	// Get should return ErrNotFound if there is no note with the given name.
	Get(name string) (text []byte, err error)

	// Create should return ErrExists if a note with the given name is already
	// present, leaving that note untouched.
	Create(name string, text []byte) (err error)

	// Replace overwrites the text of an existing note. It should return
	// ErrNotFound if the note is absent, and never create it.
	Replace(name string, text []byte) (err error)

	// Delete should return ErrNotFound if the note is absent.
	Delete(name string) (err error)

	// List returns all notes. Notes that cannot be read are left out; an error
	// is returned only if the collection itself cannot be enumerated.
	List() (notes []Note, err error)
}

var (
	// ErrNotFound indicates a note is not in the store.
	ErrNotFound = errors.New("not found")

	// ErrExists indicates a note with the same name is already in the store.
	ErrExists = errors.New("already exists")

	// ErrInvalidName indicates a name that cannot be mapped to a note file
	// inside the storage directory.
	ErrInvalidName = errors.New("invalid note name")
)

// ValidateName rejects names that are empty, refer to the storage directory or
// its parent, or would place the note file outside the storage directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
