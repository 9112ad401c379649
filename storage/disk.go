package storage

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// NoteSuffix is appended to a note name to obtain its file name.
	NoteSuffix = ".txt"

	tempPrefix = ".note-tmp-"

	// Mode of newly created notes.
	noteMode os.FileMode = 0644
)

// DiskStore implements Store keeping one file per note, named after the note
// plus NoteSuffix, in a single flat directory. The directory is the only
// state; nothing is cached.
type DiskStore struct {
	dir   string
	locks *nameLocks
}

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{
		dir:   dir,
		locks: newNameLocks(),
	}
}

// Dir returns the storage directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Get(name string) (text []byte, err error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	text, err = ioutil.ReadFile(s.pathFor(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read %q: %w", name, err)
	}
	return text, nil
}

func (s *DiskStore) Create(name string, text []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.lock(name)
	defer unlock()
	notepath := s.pathFor(name)
	tmppath, err := s.writeTemp(text, noteMode)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", name, err)
	}
	defer func() {
		_ = os.Remove(tmppath)
	}()
	// Linking fails if the target exists, so the note appears fully written
	// or not at all.
	err = os.Link(tmppath, notepath)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	log.WithFields(log.Fields{
		"name": name,
		"err":  err,
	}).Debug("Hard link failed, falling back to exclusive create")
	return createExclusive(name, notepath, text)
}

func createExclusive(name, notepath string, text []byte) error {
	f, err := os.OpenFile(notepath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, noteMode)
	if os.IsExist(err) {
		return fmt.Errorf("%q: %w", name, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("could not create %q: %w", name, err)
	}
	if _, err := f.Write(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not write %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write %q: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Replace(name string, text []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.lock(name)
	defer unlock()
	notepath := s.pathFor(name)
	// Opening for writing, rather than a stat, refuses read-only notes.
	f, err := os.OpenFile(notepath, os.O_WRONLY, 0)
	if os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not replace %q: %w", name, err)
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("could not stat %q: %w", name, err)
	}
	tmppath, err := s.writeTemp(text, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("could not replace %q: %w", name, err)
	}
	if err := os.Rename(tmppath, notepath); err != nil {
		_ = os.Remove(tmppath)
		return fmt.Errorf("could not replace %q: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	unlock := s.locks.lock(name)
	defer unlock()
	err := os.Remove(s.pathFor(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not delete %q: %w", name, err)
	}
	return nil
}

func (s *DiskStore) List() ([]Note, error) {
	entries, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not list %q: %w", s.dir, err)
	}
	notes := make([]Note, 0, len(entries))
	for _, entry := range entries {
		filename := entry.Name()
		if !strings.HasSuffix(filename, NoteSuffix) {
			continue
		}
		name := strings.TrimSuffix(filename, NoteSuffix)
		if ValidateName(name) != nil {
			continue
		}
		text, err := ioutil.ReadFile(filepath.Join(s.dir, filename))
		if err != nil {
			log.WithFields(log.Fields{
				"name": name,
				"err":  err,
			}).Debug("Skipping unreadable note")
			continue
		}
		notes = append(notes, Note{Name: name, Text: string(text)})
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Name < notes[j].Name
	})
	return notes, nil
}

// writeTemp writes text to a new temporary file in the storage directory, so
// it can later be linked or renamed into place. The file gets the given mode
// regardless of the umask.
func (s *DiskStore) writeTemp(text []byte, mode os.FileMode) (tmppath string, err error) {
	f, err := ioutil.TempFile(s.dir, tempPrefix)
	if err != nil {
		return "", err
	}
	tmppath = f.Name()
	if err = f.Chmod(mode); err == nil {
		if _, err = f.Write(text); err == nil {
			err = f.Sync()
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmppath)
		return "", err
	}
	return tmppath, nil
}

func (s *DiskStore) pathFor(name string) string {
	return filepath.Join(s.dir, name+NoteSuffix)
}
