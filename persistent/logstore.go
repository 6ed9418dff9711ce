package persistent

// Bolt is a pure Go key/value store that doesn't require a full
// database server such as Postgres or MySQL.
import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/qrilka/kontiki/raft"
)

var logsBucketName = []byte("logs")

// DbLogStore is a log store implementation backed by a Bolt DB. Keys
// are big-endian entry indexes, so bolt's byte order equals index
// order and cursor navigation walks the log in sequence.
type DbLogStore struct {
	db *bolt.DB
}

var _ raft.LogStore = DbLogStore{}

func CreateDbLogStore(dataBaseFilePath string) (DbLogStore, error) {
	// Open the .db data file in your current directory.
	// It will be created if it doesn't exist.
	db, err := bolt.Open(dataBaseFilePath, 0600, nil)
	if err != nil {
		return DbLogStore{}, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(logsBucketName)
		return err
	})
	if err != nil {
		return DbLogStore{}, err
	}
	return DbLogStore{db: db}, nil
}

func (d DbLogStore) Append(entries ...raft.LogEntry) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logsBucketName)
		var lastIndex uint64
		if key, _ := bucket.Cursor().Last(); key != nil {
			lastIndex = bytesToUint64(key)
		}
		for _, entry := range entries {
			if entry.Index == 0 {
				return fmt.Errorf("append: index 0 is reserved")
			}
			if entry.Index > lastIndex+1 {
				return fmt.Errorf("append: discontinuous index %d after %d", entry.Index, lastIndex)
			}
			val, err := encodeEntry(entry)
			if err != nil {
				return err
			}
			if err := bucket.Put(uint64ToBytes(entry.Index), val); err != nil {
				return err
			}
			if entry.Index > lastIndex {
				lastIndex = entry.Index
			}
		}
		return nil
	})
}

func (d DbLogStore) EntryAt(index uint64) (*raft.LogEntry, error) {
	var entry *raft.LogEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(logsBucketName).Get(uint64ToBytes(index))
		if val == nil {
			return nil
		}
		decoded, err := decodeEntry(val)
		if err != nil {
			return err
		}
		entry = &decoded
		return nil
	})
	return entry, err
}

func (d DbLogStore) LastEntry() (*raft.LogEntry, error) {
	var entry *raft.LogEntry
	err := d.db.View(func(tx *bolt.Tx) error {
		_, val := tx.Bucket(logsBucketName).Cursor().Last()
		if val == nil {
			return nil
		}
		decoded, err := decodeEntry(val)
		if err != nil {
			return err
		}
		entry = &decoded
		return nil
	})
	return entry, err
}

func (d DbLogStore) TruncateFrom(index uint64) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(logsBucketName)
		cursor := bucket.Cursor()
		var keys [][]byte
		for key, _ := cursor.Seek(uint64ToBytes(index)); key != nil; key, _ = cursor.Next() {
			keys = append(keys, key)
		}
		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d DbLogStore) Close() error {
	return d.db.Close()
}
