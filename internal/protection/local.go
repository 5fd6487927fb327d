package protection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/illarion/dpsecret/internal/crypto"
	"github.com/illarion/dpsecret/internal/logger"
	"github.com/illarion/dpsecret/internal/storage"
)

const envelopeVersion = 1

// envelope is the blob format of the local provider
type envelope struct {
	Version uint8  `cbor:"1,keyasint"`
	Scope   uint8  `cbor:"2,keyasint"`
	KeyID   string `cbor:"3,keyasint"`
	Nonce   []byte `cbor:"4,keyasint"`
	Box     []byte `cbor:"5,keyasint"`
}

// Local protects data with per-scope master keys held outside the blob.
// CurrentUser and LocalMachine never share key material, so a blob only
// opens under the scope it was made for.
type Local struct {
	// mu serializes key file access within the process; bbolt file locks
	// cover other processes.
	mu      sync.Mutex
	sources map[Scope]keySource
	log     *slog.Logger
}

var _ KeyManager = (*Local)(nil)

// NewLocal builds the local provider from opts
func NewLocal(opts Options) (*Local, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	var user keySource
	switch opts.UserKeyBackend {
	case "", BackendKeyring:
		user = keyringSource{scope: CurrentUser}
	case BackendFile:
		path := opts.UserKeyStore
		if path == "" {
			var err error
			if path, err = DefaultUserKeyStore(); err != nil {
				return nil, err
			}
		}
		user = fileSource{scope: CurrentUser, path: path, mode: storage.ModeOwnerOnly}
	default:
		return nil, fmt.Errorf("unknown user key backend: %q", opts.UserKeyBackend)
	}

	machinePath := opts.MachineKeyStore
	if machinePath == "" {
		machinePath = DefaultMachineKeyStore()
	}

	return &Local{
		sources: map[Scope]keySource{
			CurrentUser:  user,
			LocalMachine: fileSource{scope: LocalMachine, path: machinePath, mode: storage.ModeWorldRead},
		},
		log: log,
	}, nil
}

func (l *Local) source(scope Scope) (keySource, error) {
	src, ok := l.sources[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, uint8(scope))
	}
	return src, nil
}

// masterKey loads the scope's key record, creating one when create is set
func (l *Local) masterKey(scope Scope, create bool) (*storage.KeyRecord, bool, error) {
	src, err := l.source(scope)
	if err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := src.load()
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, ErrNoKey) || !create {
		return nil, false, err
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, false, err
	}
	fresh := &storage.KeyRecord{
		ID:      uuid.NewString(),
		Scope:   scope.String(),
		Created: time.Now().UTC(),
		Key:     key,
	}

	stored, err := src.create(fresh)
	if err != nil {
		crypto.ClearBytes(key)
		return nil, false, fmt.Errorf("failed to store %s key: %w", scope, err)
	}
	created := stored.ID == fresh.ID
	if created {
		l.log.Info("created key material", logger.Scope(scope), logger.KeyID(stored.ID), slog.String("backend", src.backend()))
	} else {
		crypto.ClearBytes(key)
	}
	return stored, created, nil
}

// sealer derives the scope-bound sealing key from a master key record
func sealer(rec *storage.KeyRecord, scope Scope) (*crypto.Sealer, error) {
	subkey, err := crypto.DeriveKey(rec.Key, "dpsecret/v1/"+scope.String()+"/"+rec.ID)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(subkey)
	return crypto.NewSealer(subkey)
}

// Protect seals data under the scope's key, creating the key on first use.
// Key store access is bounded by ctx.
func (l *Local) Protect(ctx context.Context, data []byte, scope Scope) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return callContext(ctx, data, func(data []byte) ([]byte, error) {
		return l.protect(data, scope)
	})
}

func (l *Local) protect(data []byte, scope Scope) ([]byte, error) {
	rec, _, err := l.masterKey(scope, true)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(rec.Key)

	s, err := sealer(rec, scope)
	if err != nil {
		return nil, err
	}
	defer s.Destroy()

	nonce, box, err := s.Seal(data)
	if err != nil {
		return nil, err
	}

	blob, err := cbor.Marshal(envelope{
		Version: envelopeVersion,
		Scope:   uint8(scope),
		KeyID:   rec.ID,
		Nonce:   nonce,
		Box:     box,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode blob: %w", err)
	}

	l.log.Debug("sealed data", logger.Scope(scope), logger.KeyID(rec.ID), logger.Size("blob_size", len(blob)))
	return blob, nil
}

// Unprotect opens a blob produced by Protect under the same scope.
// Key store access is bounded by ctx.
func (l *Local) Unprotect(ctx context.Context, blob []byte, scope Scope) ([]byte, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, uint8(scope))
	}
	return callContext(ctx, blob, func(blob []byte) ([]byte, error) {
		return l.unprotect(blob, scope)
	})
}

func (l *Local) unprotect(blob []byte, scope Scope) ([]byte, error) {

	var env envelope
	if err := cbor.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedBlob, env.Version)
	}
	if Scope(env.Scope) != scope {
		return nil, fmt.Errorf("%w: requested %s", ErrScopeMismatch, scope)
	}

	rec, _, err := l.masterKey(scope, false)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(rec.Key)

	if rec.ID != env.KeyID {
		return nil, fmt.Errorf("%w: blob key %s, current key %s", ErrKeyMismatch, env.KeyID, rec.ID)
	}

	s, err := sealer(rec, scope)
	if err != nil {
		return nil, err
	}
	defer s.Destroy()

	data, err := s.Open(env.Nonce, env.Box)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	l.log.Debug("opened data", logger.Scope(scope), logger.KeyID(rec.ID))
	return data, nil
}

// KeyInfo describes the stored key for scope
func (l *Local) KeyInfo(scope Scope) (*KeyInfo, error) {
	src, err := l.source(scope)
	if err != nil {
		return nil, err
	}
	rec, _, err := l.masterKey(scope, false)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(rec.Key)

	return l.describe(rec, scope, src), nil
}

// InitKey creates the key for scope if missing and reports whether it did
func (l *Local) InitKey(scope Scope) (*KeyInfo, bool, error) {
	src, err := l.source(scope)
	if err != nil {
		return nil, false, err
	}
	rec, created, err := l.masterKey(scope, true)
	if err != nil {
		return nil, false, err
	}
	defer crypto.ClearBytes(rec.Key)
	return l.describe(rec, scope, src), created, nil
}

// DeleteKey destroys the key for scope. Tokens made with it become unreadable.
func (l *Local) DeleteKey(scope Scope) error {
	src, err := l.source(scope)
	if err != nil {
		return err
	}
	l.mu.Lock()
	err = src.remove()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.log.Info("deleted key material", logger.Scope(scope), slog.String("backend", src.backend()))
	return nil
}

// Compact reclaims space in the scope's key file, if it has one
func (l *Local) Compact(scope Scope) error {
	src, err := l.source(scope)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return src.compact()
}

func (l *Local) describe(rec *storage.KeyRecord, scope Scope, src keySource) *KeyInfo {
	l.mu.Lock()
	modified := src.modified()
	l.mu.Unlock()

	return &KeyInfo{
		Scope:    scope,
		ID:       rec.ID,
		Created:  rec.Created,
		Modified: modified,
		Backend:  src.backend(),
		Location: src.location(),
	}
}
