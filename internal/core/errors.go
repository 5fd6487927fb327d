package core

import (
	"errors"
)

// Kind classifies which pipeline step failed
type Kind int

const (
	KindUnknown Kind = iota
	EmptySecret
	EmptyToken
	ProtectionService
	UnprotectionService
	TokenDecode
	TextDecode
	InvalidParameter
)

var (
	ErrEmptySecret         = errors.New("secret is empty or whitespace")
	ErrEmptyToken          = errors.New("protected token is empty")
	ErrProtectionService   = errors.New("protection service failed")
	ErrUnprotectionService = errors.New("unprotection service failed")
	ErrTokenDecode         = errors.New("token is not valid base64")
	ErrTextDecode          = errors.New("data is not valid UTF-8 text")
	ErrInvalidParameter    = errors.New("invalid parameter")
)

var kinds = map[Kind]struct {
	id       string
	sentinel error
}{
	EmptySecret:         {"EmptySecretError", ErrEmptySecret},
	EmptyToken:          {"EmptyTokenError", ErrEmptyToken},
	ProtectionService:   {"ProtectionServiceError", ErrProtectionService},
	UnprotectionService: {"UnprotectionServiceError", ErrUnprotectionService},
	TokenDecode:         {"TokenDecodeError", ErrTokenDecode},
	TextDecode:          {"TextDecodeError", ErrTextDecode},
	InvalidParameter:    {"InvalidParameterError", ErrInvalidParameter},
}

// String returns the error identifier, e.g. "TokenDecodeError"
func (k Kind) String() string {
	if v, ok := kinds[k]; ok {
		return v.id
	}
	return "UnknownError"
}

// Sentinel returns the error value matched by errors.Is for this kind
func (k Kind) Sentinel() error {
	return kinds[k].sentinel
}

// Error is a tagged pipeline failure. Err holds the underlying cause, if any.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if s := e.Kind.Sentinel(); s != nil {
		msg += ": " + s.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Cause returns the underlying cause held by the first *Error in err's chain.
// Errors outside the taxonomy are returned unchanged.
func Cause(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Err
	}
	return err
}
