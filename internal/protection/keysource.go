package protection

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/illarion/dpsecret/internal/keyring"
	"github.com/illarion/dpsecret/internal/storage"
)

// keySource holds the master key record for one scope
type keySource interface {
	load() (*storage.KeyRecord, error)
	// create stores rec unless a key already exists and returns the stored record
	create(rec *storage.KeyRecord) (*storage.KeyRecord, error)
	remove() error
	compact() error
	// modified reports when the key store last changed, if it records that
	modified() time.Time
	backend() string
	location() string
}

// keyringSource keeps the record in the OS keyring
type keyringSource struct {
	scope Scope
}

func (k keyringSource) load() (*storage.KeyRecord, error) {
	rec, err := keyring.GetKey(k.scope.String())
	if keyring.IsNotFound(err) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	return rec, nil
}

func (k keyringSource) create(rec *storage.KeyRecord) (*storage.KeyRecord, error) {
	// The keyring has no compare-and-set; re-check right before writing.
	if existing, err := k.load(); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNoKey) {
		return nil, err
	}
	if err := keyring.SaveKey(rec); err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	return rec, nil
}

func (k keyringSource) remove() error {
	err := keyring.DeleteKey(k.scope.String())
	if keyring.IsNotFound(err) {
		return ErrNoKey
	}
	if err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

func (k keyringSource) compact() error { return nil }

func (k keyringSource) modified() time.Time { return time.Time{} }

func (k keyringSource) backend() string  { return BackendKeyring }
func (k keyringSource) location() string { return "service " + appName + ", account " + k.scope.String() }

// fileSource keeps the record in a bbolt key file
type fileSource struct {
	scope Scope
	path  string
	mode  os.FileMode
}

func (f fileSource) load() (*storage.KeyRecord, error) {
	db, err := storage.OpenReadOnly(f.path)
	if errors.Is(err, storage.ErrNotInitialized) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, err
	}
	defer db.Close()

	initialized, err := db.IsInitialized()
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, ErrNoKey
	}

	rec, err := db.GetKey(f.scope.String())
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrNoKey
	}
	return rec, err
}

func (f fileSource) create(rec *storage.KeyRecord) (*storage.KeyRecord, error) {
	db, err := storage.Open(f.path, f.mode)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize key store: %w", err)
	}
	return db.CreateKey(rec)
}

func (f fileSource) remove() error {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return ErrNoKey
	}

	db, err := storage.Open(f.path, f.mode)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.DeleteKey(f.scope.String())
	if errors.Is(err, storage.ErrKeyNotFound) || errors.Is(err, storage.ErrNotInitialized) {
		return ErrNoKey
	}
	return err
}

func (f fileSource) compact() error {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return nil
	}

	db, err := storage.Open(f.path, f.mode)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Compact()
}

func (f fileSource) modified() time.Time {
	db, err := storage.OpenReadOnly(f.path)
	if err != nil {
		return time.Time{}
	}
	defer db.Close()

	modified, err := db.GetModified()
	if err != nil {
		return time.Time{}
	}
	return modified
}

func (f fileSource) backend() string  { return BackendFile }
func (f fileSource) location() string { return f.path }
