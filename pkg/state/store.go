package state

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

const dirMode = 0o755

// ErrNotFound is returned when no offset has been recorded.
var ErrNotFound = errors.New("not found")

// Store keeps the engine's committed consumer offsets in BadgerDB, so stage
// consumers resume where they left off after a restart or rebalance.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create state path: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", path, err)
	}
	log.Printf("[State] opened %s", path)
	return &Store{db: db}, nil
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func offsetKey(topic string, partition int) []byte {
	return fmt.Appendf(nil, "offset/%s/%d", topic, partition)
}

// SaveOffset records the last processed offset of a partition.
func (s *Store) SaveOffset(topic string, partition int, offset int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(offsetKey(topic, partition), strconv.AppendInt(nil, offset, 10))
	})
}

// GetOffset returns the last processed offset, or ErrNotFound.
func (s *Store) GetOffset(topic string, partition int) (int64, error) {
	var off int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(offsetKey(topic, partition))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			off, err = strconv.ParseInt(string(v), 10, 64)
			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get offset for %s/%d: %w", topic, partition, err)
	}
	return off, nil
}
