package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/illarion/dpsecret/internal/protection"
)

// KeysOptions holds the flags of the keys command
type KeysOptions struct {
	Scope string
	Force bool
}

// Keys manages local provider key material
func Keys(sub string, opts KeysOptions) {
	env := Setup()
	if err := keys(env, os.Stdin, os.Stdout, sub, opts); err != nil {
		HandleError(err)
	}
}

func keys(env *Env, in io.Reader, out io.Writer, sub string, opts KeysOptions) error {
	km, ok := env.Service.(protection.KeyManager)
	if !ok {
		fmt.Fprintln(out, "Key material is managed by the operating system for this provider")
		fmt.Fprintln(out, "Set DPSECRET_PROVIDER=local to manage local keys")
		return nil
	}

	scopes := protection.Scopes
	if opts.Scope != "" || sub != "status" {
		scope, err := env.Scope(opts.Scope)
		if err != nil {
			return err
		}
		scopes = []protection.Scope{scope}
	}

	switch sub {
	case "status":
		return keysStatus(km, out, scopes)
	case "init":
		return keysInit(km, out, scopes[0])
	case "delete":
		return keysDelete(km, in, out, scopes[0], opts.Force)
	case "compact":
		return keysCompact(km, out, scopes[0])
	default:
		return fmt.Errorf("unknown keys subcommand: %q (want status, init, delete or compact)", sub)
	}
}

func keysStatus(km protection.KeyManager, out io.Writer, scopes []protection.Scope) error {
	for _, scope := range scopes {
		info, err := km.KeyInfo(scope)
		if errors.Is(err, protection.ErrNoKey) {
			fmt.Fprintf(out, "%s: no key (created on first protect)\n", scope)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s key: %w", scope, err)
		}
		printKeyInfo(out, info)
	}
	return nil
}

func printKeyInfo(out io.Writer, info *protection.KeyInfo) {
	fmt.Fprintf(out, "%s:\n", info.Scope)
	fmt.Fprintf(out, "  Key ID:   %s\n", info.ID)
	fmt.Fprintf(out, "  Created:  %s\n", info.Created.Local().Format(time.RFC3339))
	if !info.Modified.IsZero() {
		fmt.Fprintf(out, "  Modified: %s\n", info.Modified.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(out, "  Backend:  %s (%s)\n", info.Backend, info.Location)
}

func keysInit(km protection.KeyManager, out io.Writer, scope protection.Scope) error {
	info, created, err := km.InitKey(scope)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "✓ Created %s key\n", scope)
	} else {
		fmt.Fprintf(out, "%s key already exists\n", scope)
	}
	printKeyInfo(out, info)
	return nil
}

func keysDelete(km protection.KeyManager, in io.Reader, out io.Writer, scope protection.Scope, force bool) error {
	if !force {
		question := fmt.Sprintf("Delete the %s key? Tokens protected with it can never be read again.", scope)
		if !confirm(in, out, question) {
			fmt.Fprintln(out, "Cancelled")
			return nil
		}
	}

	err := km.DeleteKey(scope)
	if errors.Is(err, protection.ErrNoKey) {
		fmt.Fprintf(out, "No %s key to delete\n", scope)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Deleted %s key\n", scope)
	return nil
}

func keysCompact(km protection.KeyManager, out io.Writer, scope protection.Scope) error {
	var path string
	if info, err := km.KeyInfo(scope); err == nil && info.Backend == protection.BackendFile {
		path = info.Location
	}

	var before int64
	if path != "" {
		if st, err := os.Stat(path); err == nil {
			before = st.Size()
		}
	}

	if err := km.Compact(scope); err != nil {
		return fmt.Errorf("failed to compact %s key store: %w", scope, err)
	}

	if path == "" {
		fmt.Fprintf(out, "✓ Compacted %s key store\n", scope)
		return nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Compacted: %s -> %s\n", formatSize(before), formatSize(st.Size()))
	return nil
}
