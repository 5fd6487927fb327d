package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket = []byte("config") // Format version, timestamps
	KeysBucket   = []byte("keys")   // KeyRecord per scope
)

// Config keys
var (
	ConfigVersion  = []byte("version")
	ConfigCreated  = []byte("created")
	ConfigModified = []byte("modified")
)

const (
	ModeOwnerOnly   os.FileMode = 0600
	ModeWorldRead   os.FileMode = 0644
	DirPermSecure   os.FileMode = 0700
	DirPermShared   os.FileMode = 0755
	openLockTimeout             = 5 * time.Second
)

var (
	ErrNotInitialized = errors.New("key store not initialized")
	ErrKeyNotFound    = errors.New("key not found")
)

// Storage provides BBolt-based storage for key records
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a key store with the given file mode.
// Missing parent directories are created.
func Open(path string, mode os.FileMode) (*Storage, error) {
	dirPerm := DirPermSecure
	if mode&0044 != 0 {
		dirPerm = DirPermShared
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create key store directory: %w", err)
	}

	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: openLockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}

	return &Storage{db: db}, nil
}

// OpenReadOnly opens an existing key store without taking a write lock.
// Users who do not own a shared machine key file can still read it.
func OpenReadOnly(path string) (*Storage, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to stat key store: %w", err)
	}

	db, err := bolt.Open(path, 0, &bolt.Options{Timeout: openLockTimeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}

	return &Storage{db: db}, nil
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Initialize creates the bucket structure. It is idempotent.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, KeysBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		now := time.Now()
		created, _ := now.MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// CreateKey stores rec unless its scope already has a key.
// It returns whichever record is stored once the transaction commits.
func (s *Storage) CreateKey(rec *KeyRecord) (*KeyRecord, error) {
	data, err := MarshalRecord(rec)
	if err != nil {
		return nil, err
	}

	stored := rec
	err = s.db.Update(func(tx *bolt.Tx) error {
		keys := tx.Bucket(KeysBucket)
		if keys == nil {
			return ErrNotInitialized
		}
		if existing := keys.Get([]byte(rec.Scope)); existing != nil {
			var err error
			stored, err = UnmarshalRecord(existing)
			return err
		}
		if err := keys.Put([]byte(rec.Scope), data); err != nil {
			return err
		}
		return touch(tx)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetKey retrieves the record for a scope
func (s *Storage) GetKey(scope string) (*KeyRecord, error) {
	var rec *KeyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket(KeysBucket)
		if keys == nil {
			return ErrNotInitialized
		}
		data := keys.Get([]byte(scope))
		if data == nil {
			return ErrKeyNotFound
		}
		// Decoding copies, so the record outlives the transaction
		var err error
		rec, err = UnmarshalRecord(data)
		return err
	})
	return rec, err
}

// DeleteKey removes the record for a scope
func (s *Storage) DeleteKey(scope string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		keys := tx.Bucket(KeysBucket)
		if keys == nil {
			return ErrNotInitialized
		}
		if keys.Get([]byte(scope)) == nil {
			return ErrKeyNotFound
		}
		if err := keys.Delete([]byte(scope)); err != nil {
			return err
		}
		return touch(tx)
	})
}

func touch(tx *bolt.Tx) error {
	config := tx.Bucket(ConfigBucket)
	if config == nil {
		return ErrNotInitialized
	}
	modified, _ := time.Now().MarshalBinary()
	return config.Put(ConfigModified, modified)
}

// Compact creates a compacted copy of the database, removing unused space.
// Deleted keys leave their pages behind until the file is compacted.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("failed to stat database: %w", err)
	}
	mode := info.Mode().Perm()

	// Create new database
	dst, err := bolt.Open(tmpPath, mode, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = bolt.Open(srcPath, mode, &bolt.Options{Timeout: openLockTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
