package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/illarion/dpsecret/internal/crypto"
	"github.com/illarion/dpsecret/internal/logger"
	"github.com/illarion/dpsecret/internal/protection"
	"github.com/illarion/dpsecret/internal/secure"
)

const (
	opProtect   = "protect"
	opUnprotect = "unprotect"
)

var (
	errNoSecret   = errors.New("secret buffer is missing or destroyed")
	errInvalidTxt = errors.New("invalid UTF-8 byte sequence")
)

// OutputMode selects how Unprotect returns the recovered secret
type OutputMode int

const (
	// PlainText returns the secret as a Go string
	PlainText OutputMode = iota
	// Confidential returns the secret in a sealed secure.Buffer
	Confidential
)

func (m OutputMode) String() string {
	if m == Confidential {
		return "confidential"
	}
	return "plaintext"
}

// Output is the result of Unprotect. Exactly one of Text or Secret is set,
// according to Mode.
type Output struct {
	Mode   OutputMode
	Text   string
	Secret *secure.Buffer
}

// Destroy releases a confidential result
func (o *Output) Destroy() {
	if o != nil {
		o.Secret.Destroy()
	}
}

// Protector runs the pipelines against a protection service.
// It holds no per-call state and is safe for concurrent use.
type Protector struct {
	svc protection.Service
	log *slog.Logger
}

// New creates a Protector. A nil logger discards output.
func New(svc protection.Service, log *slog.Logger) *Protector {
	if log == nil {
		log = logger.Discard()
	}
	return &Protector{svc: svc, log: log}
}

// Protect encrypts the secret under scope and returns a base64 token
func (p *Protector) Protect(ctx context.Context, secret *secure.Buffer, scope protection.Scope) (string, error) {
	start := time.Now()

	if !scope.Valid() {
		return "", p.fail(opProtect, InvalidParameter, fmt.Errorf("%w: %d", protection.ErrInvalidScope, uint8(scope)))
	}
	if !secret.Alive() {
		return "", p.fail(opProtect, InvalidParameter, errNoSecret)
	}

	plaintext, err := extract(secret)
	if err != nil {
		return "", p.fail(opProtect, InvalidParameter, err)
	}
	defer crypto.ClearBytes(plaintext)

	if !utf8.Valid(plaintext) {
		return "", p.fail(opProtect, TextDecode, errInvalidTxt)
	}
	if len(bytes.TrimSpace(plaintext)) == 0 {
		return "", p.fail(opProtect, EmptySecret, nil)
	}

	blob, err := p.svc.Protect(ctx, plaintext, scope)
	if err != nil {
		return "", p.fail(opProtect, ProtectionService, err)
	}

	token := base64.StdEncoding.EncodeToString(blob)
	p.log.Debug("secret protected", logger.Op(opProtect), logger.Scope(scope), logger.Size("blob_size", len(blob)), logger.Elapsed(start))
	return token, nil
}

// Unprotect decodes token, decrypts it under scope and returns the secret in
// the requested mode. Callers must Destroy a Confidential output.
func (p *Protector) Unprotect(ctx context.Context, token string, scope protection.Scope, mode OutputMode) (*Output, error) {
	start := time.Now()

	if !scope.Valid() {
		return nil, p.fail(opUnprotect, InvalidParameter, fmt.Errorf("%w: %d", protection.ErrInvalidScope, uint8(scope)))
	}
	if mode != PlainText && mode != Confidential {
		return nil, p.fail(opUnprotect, InvalidParameter, fmt.Errorf("unknown output mode %d", int(mode)))
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, p.fail(opUnprotect, EmptyToken, nil)
	}

	blob, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, p.fail(opUnprotect, TokenDecode, err)
	}

	data, err := p.svc.Unprotect(ctx, blob, scope)
	if err != nil {
		return nil, p.fail(opUnprotect, UnprotectionService, err)
	}
	defer crypto.ClearBytes(data)

	if !utf8.Valid(data) {
		return nil, p.fail(opUnprotect, TextDecode, errInvalidTxt)
	}

	out := &Output{Mode: mode}
	switch mode {
	case Confidential:
		// FromBytes wipes data as it moves it into locked memory
		out.Secret = secure.FromBytes(data)
		out.Secret.Seal()
	default:
		out.Text = string(data)
	}

	p.log.Debug("secret unprotected", logger.Op(opUnprotect), logger.Scope(scope), slog.String("mode", mode.String()), logger.Elapsed(start))
	return out, nil
}

// extract copies the buffer content into ordinary memory for the service call.
// The service may outlive a cancelled call, so it must not see locked memory
// that Destroy could unmap underneath it.
func extract(secret *secure.Buffer) ([]byte, error) {
	var plaintext []byte
	err := secret.Reveal(func(b []byte) error {
		plaintext = make([]byte, len(b))
		copy(plaintext, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

func (p *Protector) fail(op string, kind Kind, cause error) error {
	err := &Error{Op: op, Kind: kind, Err: cause}
	p.log.Debug("pipeline failed", logger.Op(op), logger.Kind(kind), logger.Error(cause))
	return err
}
