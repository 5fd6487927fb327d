package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/dpsecret/internal/config"
	"github.com/illarion/dpsecret/internal/core"
	"github.com/illarion/dpsecret/internal/logger"
	"github.com/illarion/dpsecret/internal/protection"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	svc, err := protection.NewLocal(protection.Options{
		UserKeyBackend:  protection.BackendFile,
		UserKeyStore:    filepath.Join(dir, "user.db"),
		MachineKeyStore: filepath.Join(dir, "machine.db"),
	})
	require.NoError(t, err)

	return &Env{
		Config:    &config.Config{Scope: protection.CurrentUser, Timeout: 10 * time.Second},
		Log:       logger.Discard(),
		Service:   svc,
		Protector: core.New(svc, nil),
	}
}

func protectString(t *testing.T, env *Env, secret, scope string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, protect(context.Background(), env, strings.NewReader(secret), &out, scope, ""))
	return strings.TrimSpace(out.String())
}

func TestProtectThenRead(t *testing.T) {
	env := newTestEnv(t)

	token := protectString(t, env, "hello-world\n", "")
	assert.NotEmpty(t, token)

	var out bytes.Buffer
	err := read(context.Background(), env, strings.NewReader(""), &out, ReadOptions{Args: []string{token}})
	require.NoError(t, err)
	assert.Equal(t, "hello-world\n", out.String())
}

func TestReadTokenFromStdin(t *testing.T) {
	env := newTestEnv(t)
	token := protectString(t, env, "from-stdin", "LocalMachine")

	var out bytes.Buffer
	err := read(context.Background(), env, strings.NewReader(token+"\n"), &out, ReadOptions{Scope: "localmachine"})
	require.NoError(t, err)
	assert.Equal(t, "from-stdin\n", out.String())
}

func TestReadTokenPerLine(t *testing.T) {
	env := newTestEnv(t)
	first := protectString(t, env, "first-secret", "")
	second := protectString(t, env, "second-secret", "")

	stdin := strings.NewReader(first + "\n\n  " + second + "\r\n")
	var out bytes.Buffer
	require.NoError(t, read(context.Background(), env, stdin, &out, ReadOptions{}))
	assert.Equal(t, "first-secret\nsecond-secret\n", out.String())

	out.Reset()
	require.NoError(t, read(context.Background(), env, strings.NewReader(""), &out, ReadOptions{Args: []string{second, first}}))
	assert.Equal(t, "second-secret\nfirst-secret\n", out.String())

	// Multiple secrets in a file stay line separated
	path := filepath.Join(t.TempDir(), "secrets.txt")
	stdin = strings.NewReader(first + "\n" + second + "\n")
	require.NoError(t, read(context.Background(), env, stdin, &bytes.Buffer{}, ReadOptions{AsSecure: true, Out: path}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first-secret\nsecond-secret\n", string(content))
}

func TestReadStopsAtFirstBadToken(t *testing.T) {
	env := newTestEnv(t)
	good := protectString(t, env, "hello-world", "")

	var out bytes.Buffer
	err := read(context.Background(), env, strings.NewReader(good+"\nnot-base64-!!\n"+good+"\n"), &out, ReadOptions{})
	assert.Equal(t, core.TokenDecode, core.KindOf(err))
	assert.Equal(t, "hello-world\n", out.String())
}

func TestReadAsSecureToFile(t *testing.T) {
	env := newTestEnv(t)
	token := protectString(t, env, "hello-world", "")
	path := filepath.Join(t.TempDir(), "secret.txt")

	var out bytes.Buffer
	err := read(context.Background(), env, strings.NewReader(""), &out, ReadOptions{
		AsSecure: true,
		Out:      path,
		Args:     []string{token},
	})
	require.NoError(t, err)
	assert.Empty(t, out.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", string(content))
}

func TestReadWrongScope(t *testing.T) {
	env := newTestEnv(t)
	token := protectString(t, env, "hello-world", "CurrentUser")

	err := read(context.Background(), env, strings.NewReader(""), &bytes.Buffer{}, ReadOptions{
		Scope: "LocalMachine",
		Args:  []string{token},
	})
	require.Error(t, err)
	assert.Equal(t, core.UnprotectionService, core.KindOf(err))
	assert.Contains(t, errorMessage(err), "Error [UnprotectionServiceError]")
}

func TestProtectErrors(t *testing.T) {
	env := newTestEnv(t)

	err := protect(context.Background(), env, strings.NewReader("  \n"), &bytes.Buffer{}, "", "")
	assert.Equal(t, core.EmptySecret, core.KindOf(err))

	err = protect(context.Background(), env, strings.NewReader("x"), &bytes.Buffer{}, "Everyone", "")
	assert.Equal(t, core.InvalidParameter, core.KindOf(err))
	assert.ErrorIs(t, err, protection.ErrInvalidScope)
}

func TestReadErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := read(ctx, env, strings.NewReader(""), &bytes.Buffer{}, ReadOptions{})
	assert.Equal(t, core.EmptyToken, core.KindOf(err))

	err = read(ctx, env, strings.NewReader(""), &bytes.Buffer{}, ReadOptions{Args: []string{"not-base64-!!"}})
	assert.Equal(t, core.TokenDecode, core.KindOf(err))

	err = read(ctx, env, strings.NewReader("\n  \n"), &bytes.Buffer{}, ReadOptions{})
	assert.Equal(t, core.EmptyToken, core.KindOf(err))

	big := strings.NewReader(strings.Repeat("A", maxTokenSize+4))
	err = read(ctx, env, big, &bytes.Buffer{}, ReadOptions{})
	assert.Equal(t, core.InvalidParameter, core.KindOf(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&core.Error{Op: "protect", Kind: core.EmptySecret}, "Error [EmptySecretError]: the secret is empty or whitespace"},
		{&core.Error{Op: "unprotect", Kind: core.EmptyToken}, "Error [EmptyTokenError]: no protected token was given"},
		{&core.Error{Op: "unprotect", Kind: core.TokenDecode, Err: errors.New("illegal base64 data")}, "Error [TokenDecodeError]: the token is not valid base64"},
		{&core.Error{Op: "unprotect", Kind: core.TextDecode}, "Error [TextDecodeError]: the data is not valid UTF-8 text"},
		{&core.Error{Op: "protect", Kind: core.ProtectionService, Err: context.DeadlineExceeded}, "Error [ProtectionServiceError]: failed to protect the secret: the protection service timed out (see DPSECRET_TIMEOUT)"},
		{fmt.Errorf("wrapped: %w", &core.Error{Op: "scope", Kind: core.InvalidParameter, Err: protection.ErrInvalidScope}), "Error [InvalidParameterError]: invalid protection scope"},
		{errors.New("disk on fire"), "Error: disk on fire"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, errorMessage(tt.err))
	}
}

func TestKeysLifecycle(t *testing.T) {
	env := newTestEnv(t)
	var out bytes.Buffer

	require.NoError(t, keys(env, strings.NewReader(""), &out, "status", KeysOptions{}))
	assert.Contains(t, out.String(), "CurrentUser: no key")
	assert.Contains(t, out.String(), "LocalMachine: no key")

	out.Reset()
	require.NoError(t, keys(env, strings.NewReader(""), &out, "init", KeysOptions{Scope: "LocalMachine"}))
	assert.Contains(t, out.String(), "Created LocalMachine key")
	assert.Contains(t, out.String(), "Modified:")

	out.Reset()
	require.NoError(t, keys(env, strings.NewReader(""), &out, "init", KeysOptions{Scope: "LocalMachine"}))
	assert.Contains(t, out.String(), "LocalMachine key already exists")

	token := protectString(t, env, "hello-world", "LocalMachine")

	// Declined confirmation keeps the key
	out.Reset()
	require.NoError(t, keys(env, strings.NewReader("n\n"), &out, "delete", KeysOptions{Scope: "LocalMachine"}))
	assert.Contains(t, out.String(), "Cancelled")
	require.NoError(t, read(context.Background(), env, strings.NewReader(""), &bytes.Buffer{}, ReadOptions{Scope: "LocalMachine", Args: []string{token}}))

	out.Reset()
	require.NoError(t, keys(env, strings.NewReader("yes\n"), &out, "delete", KeysOptions{Scope: "LocalMachine"}))
	assert.Contains(t, out.String(), "Deleted LocalMachine key")

	err := read(context.Background(), env, strings.NewReader(""), &bytes.Buffer{}, ReadOptions{Scope: "LocalMachine", Args: []string{token}})
	assert.Equal(t, core.UnprotectionService, core.KindOf(err))

	out.Reset()
	require.NoError(t, keys(env, strings.NewReader(""), &out, "delete", KeysOptions{Scope: "LocalMachine", Force: true}))
	assert.Contains(t, out.String(), "No LocalMachine key to delete")

	out.Reset()
	require.NoError(t, keys(env, strings.NewReader(""), &out, "compact", KeysOptions{Scope: "LocalMachine"}))
	assert.Contains(t, out.String(), "Compacted")
}

func TestKeysUnknownSubcommand(t *testing.T) {
	env := newTestEnv(t)
	err := keys(env, strings.NewReader(""), &bytes.Buffer{}, "rotate", KeysOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys subcommand")
}

type osManaged struct{}

func (osManaged) Protect(context.Context, []byte, protection.Scope) ([]byte, error) {
	return nil, errors.New("unused")
}

func (osManaged) Unprotect(context.Context, []byte, protection.Scope) ([]byte, error) {
	return nil, errors.New("unused")
}

func TestKeysWithoutKeyManager(t *testing.T) {
	env := newTestEnv(t)
	env.Service = osManaged{}

	var out bytes.Buffer
	require.NoError(t, keys(env, strings.NewReader(""), &out, "delete", KeysOptions{}))
	assert.Contains(t, out.String(), "managed by the operating system")
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	}
	for input, want := range tests {
		assert.Equal(t, want, confirm(strings.NewReader(input), &bytes.Buffer{}, "Proceed?"), "input %q", input)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 bytes", formatSize(512))
	assert.Equal(t, "32.0 KB", formatSize(32*1024))
	assert.Equal(t, "1.5 MB", formatSize(3*1024*1024/2))
}
