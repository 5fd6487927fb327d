//go:build windows

package protection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/billgraziano/dpapi"

	"github.com/illarion/dpsecret/internal/logger"
)

// DPAPI protects data with the Windows Data Protection API.
// Decryption ignores the requested scope: the blob itself records whether
// it is user or machine bound, exactly as CryptUnprotectData behaves.
type DPAPI struct {
	log *slog.Logger
}

func newDPAPI(opts Options) (Service, error) {
	return &DPAPI{log: opts.Logger}, nil
}

func newDefault(opts Options) (Service, error) {
	return newDPAPI(opts)
}

// Protect encrypts data using Windows DPAPI.
func (d *DPAPI) Protect(ctx context.Context, data []byte, scope Scope) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	var encrypt func([]byte) ([]byte, error)
	switch scope {
	case CurrentUser:
		encrypt = dpapi.EncryptBytes
	case LocalMachine:
		encrypt = dpapi.EncryptBytesMachineLocal
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, uint8(scope))
	}

	d.log.Debug("calling CryptProtectData", logger.Scope(scope), logger.Size("data_size", len(data)))
	blob, err := callContext(ctx, data, encrypt)
	if err != nil {
		return nil, fmt.Errorf("CryptProtectData: %w", err)
	}
	return blob, nil
}

// Unprotect decrypts data encrypted with Protect using Windows DPAPI.
func (d *DPAPI) Unprotect(ctx context.Context, blob []byte, scope Scope) ([]byte, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, uint8(scope))
	}
	if len(blob) == 0 {
		return nil, ErrMalformedBlob
	}

	d.log.Debug("calling CryptUnprotectData", logger.Scope(scope), logger.Size("blob_size", len(blob)))
	data, err := callContext(ctx, blob, dpapi.DecryptBytes)
	if err != nil {
		return nil, fmt.Errorf("CryptUnprotectData: %w", err)
	}
	return data, nil
}
