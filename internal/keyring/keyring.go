// Package keyring keeps CurrentUser key records in the OS keyring
// (Secret Service, macOS Keychain, Windows Credential Manager).
package keyring

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/illarion/dpsecret/internal/storage"
)

const serviceName = "dpsecret"

// ErrNotFound is returned when no key is stored for the scope
var ErrNotFound = keyring.ErrNotFound

// SaveKey stores a key record in the OS keyring under the scope name
func SaveKey(rec *storage.KeyRecord) error {
	data, err := storage.MarshalRecord(rec)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, rec.Scope, base64.StdEncoding.EncodeToString(data))
}

// GetKey retrieves the key record for a scope from the OS keyring
func GetKey(scope string) (*storage.KeyRecord, error) {
	encoded, err := keyring.Get(serviceName, scope)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("corrupt keyring entry: %w", err)
	}
	return storage.UnmarshalRecord(data)
}

// DeleteKey removes the key record for a scope from the OS keyring
func DeleteKey(scope string) error {
	return keyring.Delete(serviceName, scope)
}

// IsNotFound reports whether err means the keyring has no entry
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}
