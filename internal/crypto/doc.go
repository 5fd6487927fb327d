// Package crypto provides the symmetric primitives behind the local
// protection provider.
//
// Sealing uses NaCl secretbox (XSalsa20-Poly1305) with:
//   - 32-byte key derived per scope from a master key via HKDF-SHA256
//   - 24-byte random nonce per seal operation
//   - Authenticated encryption, so tampered boxes fail to open
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Derived keys are owned by the caller and must be cleared
package crypto
