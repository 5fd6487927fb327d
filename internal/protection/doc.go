// Package protection implements the Protection Service: scope-bound
// encryption of small byte strings with key material the caller never sees.
//
// Two providers exist:
//   - DPAPI (Windows only) calls CryptProtectData/CryptUnprotectData, so
//     tokens interoperate with .NET ProtectedData.
//   - Local derives a per-scope key from a master key kept in the OS keyring
//     (CurrentUser) or in a machine-wide key file (LocalMachine), and seals
//     with NaCl secretbox inside a CBOR envelope.
//
// Blobs are opaque to callers. Only the provider that produced a blob reads
// its structure.
package protection
