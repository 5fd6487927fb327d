package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/illarion/dpsecret/internal/config"
	"github.com/illarion/dpsecret/internal/core"
	"github.com/illarion/dpsecret/internal/logger"
	"github.com/illarion/dpsecret/internal/protection"
	"github.com/illarion/dpsecret/internal/security"
)

// Env holds what every command needs
type Env struct {
	Config    *config.Config
	Log       *slog.Logger
	Service   protection.Service
	Protector *core.Protector
}

// Setup loads configuration and builds the protection service, exiting on failure
func Setup() *Env {
	env, err := NewEnv(os.Stderr)
	if err != nil {
		HandleError(err)
	}
	return env
}

// NewEnv loads configuration and logs diagnostics to logOut
func NewEnv(logOut io.Writer) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	svc, err := protection.New(cfg.ProtectionOptions(log))
	if err != nil {
		return nil, err
	}

	return &Env{
		Config:    cfg,
		Log:       log,
		Service:   svc,
		Protector: core.New(svc, log),
	}, nil
}

// Scope resolves a -scope flag value, falling back to the configured default
func (e *Env) Scope(flagValue string) (protection.Scope, error) {
	if flagValue == "" {
		return e.Config.Scope, nil
	}
	scope, err := protection.ParseScope(flagValue)
	if err != nil {
		return 0, &core.Error{Op: "scope", Kind: core.InvalidParameter, Err: err}
	}
	return scope, nil
}

// WithTimeout bounds a protection service call by the configured deadline
func (e *Env) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Config.Timeout)
}

// HandleError prints err, wipes all locked memory and exits
func HandleError(err error) {
	fmt.Fprintln(os.Stderr, errorMessage(err))
	memguard.SafeExit(1)
}

// errorMessage renders err for the terminal. Kinds get their identifier as a tag.
func errorMessage(err error) string {
	kind := core.KindOf(err)
	if kind == core.KindUnknown {
		return "Error: " + plainMessage(err)
	}
	cause := core.Cause(err)

	var msg string
	switch kind {
	case core.EmptySecret:
		msg = "the secret is empty or whitespace"
	case core.EmptyToken:
		msg = "no protected token was given"
	case core.TokenDecode:
		msg = "the token is not valid base64"
	case core.TextDecode:
		msg = "the data is not valid UTF-8 text"
	case core.ProtectionService:
		msg = "failed to protect the secret: " + plainMessage(cause)
	case core.UnprotectionService:
		msg = "failed to unprotect the token: " + plainMessage(cause)
		if errors.Is(cause, protection.ErrScopeMismatch) || errors.Is(cause, protection.ErrDecryptFailed) {
			msg += "\nCheck that -scope matches the scope used to protect it"
		}
	default:
		msg = plainMessage(cause)
	}
	return fmt.Sprintf("Error [%s]: %s", kind, msg)
}

func plainMessage(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, context.DeadlineExceeded):
		return "the protection service timed out (see DPSECRET_TIMEOUT)"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, protection.ErrUnsupportedProvider):
		return err.Error() + "\nSet DPSECRET_PROVIDER=local to use the local provider"
	}
	return err.Error()
}

// writeOutput hands fn stdout, or a new owner-only file when path is set
func writeOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}

	f, err := security.CreatePrivate(path)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

// confirm asks a yes/no question. Only an explicit yes confirms.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)

	var response string
	fmt.Fscanln(in, &response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
