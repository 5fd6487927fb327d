package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/illarion/dpsecret/internal/secure"
)

// Protect reads a secret and prints its protected token
func Protect(ctx context.Context, scopeFlag, outPath string) {
	env := Setup()
	if err := protect(ctx, env, os.Stdin, os.Stdout, scopeFlag, outPath); err != nil {
		HandleError(err)
	}
}

func protect(ctx context.Context, env *Env, in io.Reader, stdout io.Writer, scopeFlag, outPath string) error {
	scope, err := env.Scope(scopeFlag)
	if err != nil {
		return err
	}

	secret, err := readSecret(in)
	if err != nil {
		return err
	}
	defer secret.Destroy()

	ctx, cancel := env.WithTimeout(ctx)
	defer cancel()

	token, err := env.Protector.Protect(ctx, secret, scope)
	if err != nil {
		return err
	}

	return writeOutput(stdout, outPath, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, token)
		return err
	})
}

// readSecret prompts without echo on a terminal and reads piped input otherwise
func readSecret(in io.Reader) (*secure.Buffer, error) {
	if f, ok := in.(*os.File); ok && secure.IsTerminal(int(f.Fd())) {
		return secure.ReadTerminal(int(f.Fd()), "Secret: ", os.Stderr)
	}
	return secure.ReadFrom(in)
}
