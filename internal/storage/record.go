package storage

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// KeyRecord is the master key material for one scope
type KeyRecord struct {
	ID      string    `cbor:"1,keyasint"`
	Scope   string    `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`
	Key     []byte    `cbor:"4,keyasint"`
}

// MarshalRecord encodes a record for storage
func MarshalRecord(rec *KeyRecord) ([]byte, error) {
	data, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a stored record
func UnmarshalRecord(data []byte) (*KeyRecord, error) {
	rec := &KeyRecord{}
	if err := cbor.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode key record: %w", err)
	}
	return rec, nil
}
