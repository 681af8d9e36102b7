package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ljpprojects/kolloquy/errors"
)

// BadgerStore keeps blobs in an embedded Badger database. It stands in
// for the remote bucket when no S3-compatible endpoint is configured.
// The namespace keeps several logical buckets apart inside one database.
type BadgerStore struct {
	db        *badger.DB
	namespace string
}

func NewBadgerStore(db *badger.DB, namespace string) *BadgerStore {
	return &BadgerStore{db: db, namespace: namespace}
}

func (s *BadgerStore) key(key string) []byte {
	return []byte(s.namespace + ":" + key)
}

func (s *BadgerStore) Put(_ context.Context, key string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: badger set %s: %v", errors.ErrStorageWrite, key, err)
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: badger get %s: %v", errors.ErrStorageRead, key, err)
	}
	return out, nil
}

func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete %s: %v", errors.ErrStorageWrite, key, err)
	}
	return nil
}
