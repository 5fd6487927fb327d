package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/illarion/dpsecret/cmd"
)

func main() {
	// Wipe locked memory if the process is interrupted mid-call
	memguard.CatchInterrupt()
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "protect", "new":
		runProtect(ctx, os.Args[2:])
	case "read", "unprotect":
		runRead(ctx, os.Args[2:])
	case "keys":
		runKeys(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runProtect(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("protect", flag.ExitOnError)
	scope := fs.String("scope", "", "Protection scope: CurrentUser or LocalMachine")
	out := fs.String("out", "", "Write the token to this file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Error: protect reads the secret from stdin, not from arguments")
		os.Exit(1)
	}

	cmd.Protect(ctx, *scope, *out)
}

func runRead(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	scope := fs.String("scope", "", "Protection scope: CurrentUser or LocalMachine")
	asSecure := fs.Bool("as-secure", false, "Keep the secret in locked memory until written")
	out := fs.String("out", "", "Write the secret to this file (owner-only)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Read(ctx, cmd.ReadOptions{
		Scope:    *scope,
		AsSecure: *asSecure,
		Out:      *out,
		Args:     fs.Args(),
	})
}

func runKeys(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dpsecret keys <status|init|delete|compact> [-scope S] [-force]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("keys "+args[0], flag.ExitOnError)
	scope := fs.String("scope", "", "Protection scope: CurrentUser or LocalMachine")
	force := fs.Bool("force", false, "Delete without confirmation")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Keys(args[0], cmd.KeysOptions{Scope: *scope, Force: *force})
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dpsecret completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("dpsecret - Protect small secrets with user- or machine-bound keys")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dpsecret <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  protect, new     Protect a secret and print a base64 token")
	fmt.Println("  read, unprotect  Unprotect a token and print the secret")
	fmt.Println("  keys             Manage local provider key material")
	fmt.Println("  completion       Generate shell completions")
	fmt.Println("  help             Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dpsecret protect > token.txt                  # Prompt for a secret")
	fmt.Println("  printf 'hunter2' | dpsecret protect           # Protect piped input")
	fmt.Println("  dpsecret read \"$(cat token.txt)\"              # Print the secret")
	fmt.Println("  dpsecret read -scope LocalMachine < token.txt # Machine-bound token")
	fmt.Println()
	fmt.Println("Use 'dpsecret help <command>' for more information about a command.")
	fmt.Println("Use 'dpsecret help env' to list configuration variables.")
}

func printCommandHelp(command string) {
	switch command {
	case "protect", "new":
		fmt.Println("dpsecret protect [-scope CurrentUser|LocalMachine] [-out FILE]")
		fmt.Println()
		fmt.Println("Encrypts a secret and prints it as a base64 token.")
		fmt.Println("On a terminal the secret is read without echo; otherwise it is read")
		fmt.Println("from stdin and one trailing newline is dropped.")
		fmt.Println("Empty or whitespace-only secrets are rejected.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -scope   CurrentUser (default) or LocalMachine")
		fmt.Println("  -out     Write the token to FILE instead of stdout")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  dpsecret protect")
		fmt.Println("  dpsecret protect -scope LocalMachine -out token.txt")
	case "read", "unprotect":
		fmt.Println("dpsecret read [-scope CurrentUser|LocalMachine] [-as-secure] [-out FILE] [TOKEN...]")
		fmt.Println()
		fmt.Println("Decrypts tokens produced by 'dpsecret protect' and prints one secret per line.")
		fmt.Println("Tokens are taken from the arguments, or one per line from stdin when omitted.")
		fmt.Println("Processing stops at the first token that fails.")
		fmt.Println("The scope must match the one used to protect the token.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -scope      CurrentUser (default) or LocalMachine")
		fmt.Println("  -as-secure  Keep the secret in locked memory until it is written")
		fmt.Println("  -out        Write to FILE (mode 0600); a single secret is written without newline")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  dpsecret read AQAAANCMnd8BFdERjHoAwE...")
		fmt.Println("  dpsecret read -as-secure -out .secret < token.txt")
		fmt.Println("  cat tokens.txt | dpsecret read")
	case "keys":
		fmt.Println("dpsecret keys <status|init|delete|compact> [-scope CurrentUser|LocalMachine] [-force]")
		fmt.Println()
		fmt.Println("Manages key material of the local provider. DPAPI keys are managed by")
		fmt.Println("Windows and are not shown here.")
		fmt.Println()
		fmt.Println("Subcommands:")
		fmt.Println("  status   Show key ids and where they are stored (all scopes by default)")
		fmt.Println("  init     Create the key for a scope now instead of on first protect")
		fmt.Println("  delete   Destroy the key; its tokens can never be read again")
		fmt.Println("  compact  Reclaim space in the key file")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -scope   Scope to act on (default from DPSECRET_SCOPE)")
		fmt.Println("  -force   Delete without confirmation")
	case "completion":
		fmt.Println("dpsecret completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(dpsecret completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(dpsecret completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  dpsecret completion fish | source")
	case "env", "config":
		fmt.Println("Configuration (environment or .env in the working directory):")
		fmt.Println()
		fmt.Println("  DPSECRET_SCOPE              Default scope (CurrentUser)")
		fmt.Println("  DPSECRET_PROVIDER           auto, dpapi or local (auto)")
		fmt.Println("  DPSECRET_USER_KEY_BACKEND   keyring or file (keyring)")
		fmt.Println("  DPSECRET_USER_KEY_STORE     Per-user key file for the file backend")
		fmt.Println("  DPSECRET_MACHINE_KEY_STORE  Machine key file")
		fmt.Println("  DPSECRET_TIMEOUT            Protection service deadline (30s)")
		fmt.Println("  DPSECRET_LOG_LEVEL          debug, info, warn or error (warn)")
		fmt.Println("  DPSECRET_LOG_FORMAT         text or json (text)")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
