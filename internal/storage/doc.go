// Package storage provides the BBolt key file used by the local protection
// provider.
//
// Database structure uses two buckets:
//   - config: format version and timestamps
//   - keys: one CBOR-encoded KeyRecord per protection scope
//
// A machine key file is created world-readable so every local user can
// unprotect machine-scoped tokens; a user key file is owner-only.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
