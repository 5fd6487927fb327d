// Package core provides the two dpsecret pipelines.
//
// Protect: confidential buffer -> UTF-8 bytes -> Protection Service -> base64 token.
// Unprotect: base64 token -> blob -> Protection Service -> UTF-8 text, returned
// as plain text or as a sealed confidential buffer.
//
// Each step fails with its own error Kind so callers can tell validation,
// service and encoding failures apart. Errors never carry secret material,
// and every plaintext copy is wiped before the pipeline returns.
package core
