package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/illarion/dpsecret/internal/core"
	"github.com/illarion/dpsecret/internal/protection"
	"github.com/illarion/dpsecret/internal/secure"
)

// maxTokenSize bounds one line of token input read from stdin
const maxTokenSize = 1 << 20

// ReadOptions holds the flags of the read command
type ReadOptions struct {
	Scope    string
	AsSecure bool
	Out      string
	Args     []string
}

// Read unprotects each token and prints its secret
func Read(ctx context.Context, opts ReadOptions) {
	env := Setup()
	if err := read(ctx, env, os.Stdin, os.Stdout, opts); err != nil {
		HandleError(err)
	}
}

func read(ctx context.Context, env *Env, in io.Reader, stdout io.Writer, opts ReadOptions) error {
	scope, err := env.Scope(opts.Scope)
	if err != nil {
		return err
	}

	tokens, err := readTokens(in, opts.Args)
	if err != nil {
		return err
	}

	mode := core.PlainText
	if opts.AsSecure {
		mode = core.Confidential
	}

	// A single secret written to a file is exact; otherwise each one ends a line
	newline := opts.Out == "" || len(tokens) > 1
	return writeOutput(stdout, opts.Out, func(w io.Writer) error {
		for _, token := range tokens {
			if err := readOne(ctx, env, w, token, scope, mode, newline); err != nil {
				return err
			}
		}
		return nil
	})
}

func readOne(ctx context.Context, env *Env, w io.Writer, token string, scope protection.Scope, mode core.OutputMode, newline bool) error {
	ctx, cancel := env.WithTimeout(ctx)
	defer cancel()

	out, err := env.Protector.Unprotect(ctx, token, scope, mode)
	if err != nil {
		return err
	}
	defer out.Destroy()

	if err := writeSecret(w, out); err != nil {
		return err
	}
	if newline {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

func writeSecret(w io.Writer, out *core.Output) error {
	if out.Mode == core.Confidential {
		_, err := out.Secret.WriteTo(w)
		return err
	}
	_, err := io.WriteString(w, out.Text)
	return err
}

// readTokens takes tokens from args or, when none are given, one per
// non-empty line of in. No tokens at all yields a single empty token.
func readTokens(in io.Reader, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if f, ok := in.(*os.File); ok && secure.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(os.Stderr, "Paste tokens one per line, then press Ctrl-D:")
	}

	var tokens []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxTokenSize)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			tokens = append(tokens, line)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &core.Error{Op: "unprotect", Kind: core.InvalidParameter, Err: fmt.Errorf("token exceeds %d bytes", maxTokenSize)}
		}
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}

	if len(tokens) == 0 {
		return []string{""}, nil
	}
	return tokens, nil
}
