package protection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/illarion/dpsecret/internal/crypto"
	"github.com/illarion/dpsecret/internal/logger"
)

// Service protects and unprotects byte strings under a scope
type Service interface {
	Protect(ctx context.Context, data []byte, scope Scope) ([]byte, error)
	Unprotect(ctx context.Context, blob []byte, scope Scope) ([]byte, error)
}

// KeyManager is implemented by providers whose key material this tool manages
type KeyManager interface {
	KeyInfo(scope Scope) (*KeyInfo, error)
	InitKey(scope Scope) (*KeyInfo, bool, error)
	DeleteKey(scope Scope) error
	Compact(scope Scope) error
}

// KeyInfo describes stored key material without exposing it
type KeyInfo struct {
	Scope    Scope
	ID       string
	Created  time.Time
	// Modified is the last change to the key file; zero for the keyring backend
	Modified time.Time
	Backend  string
	Location string
}

// Provider names accepted in Options.Provider
const (
	ProviderAuto  = "auto"
	ProviderDPAPI = "dpapi"
	ProviderLocal = "local"
)

// User key backends accepted in Options.UserKeyBackend
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// Options configures the service returned by New
type Options struct {
	Provider        string
	UserKeyBackend  string
	UserKeyStore    string
	MachineKeyStore string
	Logger          *slog.Logger
}

var (
	ErrUnsupportedProvider = errors.New("protection provider not supported on this platform")
	ErrEmptyData           = errors.New("nothing to protect")
	ErrNoKey               = errors.New("no key material for scope")
	ErrScopeMismatch       = errors.New("blob was protected under a different scope")
	ErrKeyMismatch         = errors.New("blob was protected with different key material")
	ErrMalformedBlob       = errors.New("malformed protected blob")
	ErrDecryptFailed       = errors.New("blob failed authentication")
)

// New returns the service selected by opts.Provider.
// "auto" means DPAPI on Windows and the local provider elsewhere.
func New(opts Options) (Service, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	switch opts.Provider {
	case ProviderLocal:
		return NewLocal(opts)
	case ProviderDPAPI:
		return newDPAPI(opts)
	case "", ProviderAuto:
		return newDefault(opts)
	default:
		return nil, errors.New("unknown protection provider: " + opts.Provider)
	}
}

// callContext runs fn on a private copy of in and gives up when ctx is done.
// fn keeps running in the background if the deadline fires first. The copy is
// wiped once fn returns, and so is a result nobody is waiting for.
func callContext(ctx context.Context, in []byte, fn func(in []byte) ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	own := make([]byte, len(in))
	copy(own, in)

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := fn(own)
		crypto.ClearBytes(own)
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		go func() {
			r := <-done
			crypto.ClearBytes(r.data)
		}()
		return nil, ctx.Err()
	}
}
