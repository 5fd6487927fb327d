// Package secure provides Buffer, a confidential in-memory container for
// secret text.
//
// A Buffer lives in memguard-locked memory guarded against swapping and
// core dumps. Its lifecycle is:
//   - construction by appending (New, Append, AppendRune) or by moving
//     existing bytes in (FromBytes, ReadFrom, ReadTerminal)
//   - an optional Seal that makes the content read-only
//   - scoped access through Reveal or WriteTo
//   - Destroy, which wipes and releases the memory
//
// Callers should pair every constructor with a deferred Destroy.
package secure
