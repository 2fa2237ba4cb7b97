package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("news")
	boltKey    = []byte("state")
)

// BoltBacking stores the JSON document under a single key of a bbolt file.
// Each Save is one write transaction, so readers never see a partial document.
type BoltBacking struct {
	db *bolt.DB
}

// NewBoltBacking opens (or creates) the database at path.
func NewBoltBacking(path string) (*BoltBacking, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bolt bucket: %w", err)
	}

	return &BoltBacking{db: db}, nil
}

// Load reads the document. A missing key is an empty document.
func (b *BoltBacking) Load() (Document, error) {
	doc := Document{}

	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(boltBucket).Get(boltKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bolt state: %w", err)
	}

	return doc, nil
}

// Save replaces the stored document.
func (b *BoltBacking) Save(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(boltKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to save bolt state: %w", err)
	}

	return nil
}

// Close releases the database file lock.
func (b *BoltBacking) Close() error {
	return b.db.Close()
}
