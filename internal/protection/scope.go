package protection

import (
	"errors"
	"fmt"
	"strings"
)

// Scope selects the key domain used to protect data
type Scope uint8

const (
	// CurrentUser binds data to the invoking user
	CurrentUser Scope = 0
	// LocalMachine binds data to the host; any local user may unprotect it
	LocalMachine Scope = 1
)

var ErrInvalidScope = errors.New("invalid protection scope")

// Scopes lists every valid scope
var Scopes = []Scope{CurrentUser, LocalMachine}

func (s Scope) String() string {
	switch s {
	case CurrentUser:
		return "CurrentUser"
	case LocalMachine:
		return "LocalMachine"
	default:
		return fmt.Sprintf("Scope(%d)", uint8(s))
	}
}

// Valid reports whether s is a known scope
func (s Scope) Valid() bool {
	return s == CurrentUser || s == LocalMachine
}

// ParseScope accepts scope names in any case and the numeric values 0 and 1
func ParseScope(v string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "currentuser", "0":
		return CurrentUser, nil
	case "localmachine", "1":
		return LocalMachine, nil
	default:
		return 0, fmt.Errorf("%w: %q (want CurrentUser or LocalMachine)", ErrInvalidScope, v)
	}
}

func (s Scope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
