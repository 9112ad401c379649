package storage

import (
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore is a Store implementation powered by a map, to be used for
// testing.
type InMemoryStore struct {
	sync.Mutex
	m map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		m: make(map[string][]byte),
	}
}

func (s *InMemoryStore) Get(name string) (text []byte, err error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	s.Lock()
	text, ok := s.m[name]
	s.Unlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return dup(text), nil
}

func (s *InMemoryStore) Create(name string, text []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if _, ok := s.m[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	s.m[name] = dup(text)
	return nil
}

func (s *InMemoryStore) Replace(name string, text []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if _, ok := s.m[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	s.m[name] = dup(text)
	return nil
}

func (s *InMemoryStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	if _, ok := s.m[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	delete(s.m, name)
	return nil
}

func (s *InMemoryStore) List() ([]Note, error) {
	s.Lock()
	notes := make([]Note, 0, len(s.m))
	for name, text := range s.m {
		notes = append(notes, Note{Name: name, Text: string(text)})
	}
	s.Unlock()
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Name < notes[j].Name
	})
	return notes, nil
}

// dup returns a non-nil copy of b, so callers can neither alias stored values
// nor observe nil for empty notes.
func dup(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
