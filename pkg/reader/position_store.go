package reader

import (
	"encoding/binary"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketPositions = []byte("file_positions") // Path -> Offset

// boltPositionStore implements PositionStore using bbolt.
type boltPositionStore struct {
	db *bolt.DB
}

// NewBoltPositionStore creates a bbolt-based position store.
func NewBoltPositionStore(db *bolt.DB) (PositionStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketPositions)
		return createErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create positions bucket: %w", err)
	}

	return &boltPositionStore{db: db}, nil
}

// GetPosition implements PositionStore.GetPosition.
func (s *boltPositionStore) GetPosition(path string) (int64, error) {
	var offset int64

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPositions).Get([]byte(path))
		if data == nil {
			return nil
		}

		v, decodeErr := decodeOffset(data)
		if decodeErr != nil {
			return fmt.Errorf("failed to decode offset for %s: %w", path, decodeErr)
		}
		offset = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	return offset, nil
}

// SetPosition implements PositionStore.SetPosition.
func (s *boltPositionStore) SetPosition(path string, offset int64) error {
	if offset < 0 {
		return ErrInvalidOffset
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if putErr := tx.Bucket(bucketPositions).Put([]byte(path), encodeOffset(offset)); putErr != nil {
			return fmt.Errorf("failed to store position: %w", putErr)
		}
		return nil
	})
}

// Positions implements PositionStore.Positions.
func (s *boltPositionStore) Positions() (map[string]int64, error) {
	out := make(map[string]int64)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).ForEach(func(k, v []byte) error {
			offset, decodeErr := decodeOffset(v)
			if decodeErr != nil {
				return fmt.Errorf("failed to decode offset for %s: %w", k, decodeErr)
			}
			out[string(k)] = offset
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Clear implements PositionStore.Clear.
func (s *boltPositionStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPositions); err != nil {
			return fmt.Errorf("failed to delete positions bucket: %w", err)
		}
		_, err := tx.CreateBucket(bucketPositions)
		return err
	})
}

func encodeOffset(offset int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(offset)) // nolint:gosec // offset is validated non-negative
	return buf
}

func decodeOffset(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidOffset, len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil // nolint:gosec // written by encodeOffset
}

// memoryPositionStore implements PositionStore using an in-memory map.
// Useful for testing and one-shot reports.
type memoryPositionStore struct {
	mu        sync.RWMutex
	positions map[string]int64
}

// NewMemoryPositionStore creates an in-memory position store.
func NewMemoryPositionStore() PositionStore {
	return &memoryPositionStore{
		positions: make(map[string]int64),
	}
}

// GetPosition implements PositionStore.GetPosition.
func (s *memoryPositionStore) GetPosition(path string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.positions[path], nil
}

// SetPosition implements PositionStore.SetPosition.
func (s *memoryPositionStore) SetPosition(path string, offset int64) error {
	if offset < 0 {
		return ErrInvalidOffset
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[path] = offset
	return nil
}

// Positions implements PositionStore.Positions.
func (s *memoryPositionStore) Positions() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

// Clear implements PositionStore.Clear.
func (s *memoryPositionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]int64)
	return nil
}
