package storage

import (
	"fmt"

	"github.com/boltdb/bolt"
)

// BoltReplica is an implementation of Replica whose backend is a Bolt
// database, keyed by note name.
type BoltReplica bolt.DB

var (
	bucketName = []byte("notes")
)

func NewBoltReplica(db *bolt.DB) (*BoltReplica, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("could not ensure bucket %q exists: %w", bucketName, err)
		}
		return nil
	})
	return (*BoltReplica)(db), err
}

func (r *BoltReplica) PutNote(name string, text []byte) error {
	return (*bolt.DB)(r).Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketName).Put([]byte(name), text); err != nil {
			return fmt.Errorf("could not put %.40q: %w", name, err)
		}
		return nil
	})
}

func (r *BoltReplica) DeleteNote(name string) error {
	return (*bolt.DB)(r).Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketName).Delete([]byte(name)); err != nil {
			return fmt.Errorf("could not delete %.40q: %w", name, err)
		}
		return nil
	})
}

// GetNote returns the replicated text of a note.
func (r *BoltReplica) GetNote(name string) (text []byte, err error) {
	err = (*bolt.DB)(r).View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketName).Get([]byte(name))
		if value == nil {
			return fmt.Errorf("%.40q: %w", name, ErrNotFound)
		}
		// Only valid for the life of the transaction.
		text = dup(value)
		return nil
	})
	return text, err
}
