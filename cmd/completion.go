package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_dpsecret() {
    local cur prev words cword
    _init_completion || return

    local commands="protect new read unprotect keys help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    if [[ "$prev" == "-scope" ]]; then
        COMPREPLY=($(compgen -W "CurrentUser LocalMachine" -- "$cur"))
        return
    fi
    if [[ "$prev" == "-out" ]]; then
        _filedir
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        protect|new)
            COMPREPLY=($(compgen -W "-scope -out" -- "$cur"))
            ;;
        read|unprotect)
            COMPREPLY=($(compgen -W "-scope -as-secure -out" -- "$cur"))
            ;;
        keys)
            if [[ $cword -eq 2 ]]; then
                COMPREPLY=($(compgen -W "status init delete compact" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "-scope -force" -- "$cur"))
            fi
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _dpsecret dpsecret
`

const zshCompletion = `#compdef dpsecret

_dpsecret() {
    local -a commands
    commands=(
        'protect:Protect a secret and print its token'
        'new:Alias for protect'
        'read:Unprotect a token and print the secret'
        'unprotect:Alias for read'
        'keys:Manage local provider key material'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'dpsecret commands' commands
            ;;
        args)
            case "${words[2]}" in
                protect|new)
                    _arguments \
                        '-scope[Protection scope]:scope:(CurrentUser LocalMachine)' \
                        '-out[Write the token to a file]:file:_files'
                    ;;
                read|unprotect)
                    _arguments \
                        '-scope[Protection scope]:scope:(CurrentUser LocalMachine)' \
                        '-as-secure[Keep the secret in locked memory]' \
                        '-out[Write the secret to a file]:file:_files'
                    ;;
                keys)
                    _arguments \
                        '1:subcommand:(status init delete compact)' \
                        '-scope[Protection scope]:scope:(CurrentUser LocalMachine)' \
                        '-force[Delete without confirmation]'
                    ;;
                help)
                    _describe -t commands 'dpsecret commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_dpsecret "$@"
`

const fishCompletion = `# dpsecret fish completions

set -l commands protect new read unprotect keys help completion

complete -c dpsecret -f

# Commands
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a protect -d 'Protect a secret'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a new -d 'Alias for protect'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a read -d 'Unprotect a token'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a unprotect -d 'Alias for read'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a keys -d 'Manage local key material'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c dpsecret -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# Shared flags
complete -c dpsecret -n "__fish_seen_subcommand_from protect new read unprotect keys" -o scope -xa "CurrentUser LocalMachine" -d 'Protection scope'
complete -c dpsecret -n "__fish_seen_subcommand_from protect new read unprotect" -o out -r -F -d 'Output file'

# read flags
complete -c dpsecret -n "__fish_seen_subcommand_from read unprotect" -o as-secure -d 'Keep the secret in locked memory'

# keys subcommands
complete -c dpsecret -n "__fish_seen_subcommand_from keys" -a "status init delete compact"
complete -c dpsecret -n "__fish_seen_subcommand_from keys" -o force -d 'Delete without confirmation'

# help completions
complete -c dpsecret -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c dpsecret -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
