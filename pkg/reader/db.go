package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// dbOpenTimeout bounds the wait for the bbolt file lock.
const dbOpenTimeout = time.Second

// OpenDB opens (creating if necessary) the bbolt database at path.
//
// The parent directory is created with 0700 and the file with 0600.
// Opening fails after one second if another process holds the lock.
func OpenDB(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
