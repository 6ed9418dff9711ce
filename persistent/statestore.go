package persistent

import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/qrilka/kontiki/raft"
)

var stateBucketName = []byte("state")

// PStore is a Bolt-backed raft.StateStore holding a node's
// non-volatile protocol variables (term, vote).
type PStore struct {
	db *bolt.DB
}

var _ raft.StateStore = PStore{}

func NewPStore(dataBaseFilePath string) (PStore, error) {
	db, err := bolt.Open(dataBaseFilePath, 0600, nil)
	if err != nil {
		return PStore{}, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucketName)
		return err
	})
	if err != nil {
		return PStore{}, err
	}
	return PStore{db: db}, nil
}

func (store PStore) Set(key, value []byte) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucketName).Put(key, value)
	})
}

func (store PStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := store.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(stateBucketName).Get(key)
		if raw == nil {
			return fmt.Errorf("no value for key %q", key)
		}
		// Bolt values are only valid inside the transaction.
		val = append([]byte(nil), raw...)
		return nil
	})
	return val, err
}

func (store PStore) GetDefault(key []byte, defaultVal []byte) ([]byte, error) {
	var val []byte
	err := store.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(stateBucketName)
		raw := bucket.Get(key)
		if raw == nil {
			val = defaultVal
			if defaultVal == nil {
				return nil
			}
			return bucket.Put(key, defaultVal)
		}
		val = append([]byte(nil), raw...)
		return nil
	})
	return val, err
}

func (store PStore) Close() error {
	return store.db.Close()
}
