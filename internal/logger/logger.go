// Package logger builds the structured diagnostic logger and the attribute
// helpers used across dpsecret.
//
// Attribute helpers return an empty slog.Attr for zero values, so calls like
// log.Debug("msg", logger.Error(err)) need no nil checks. No helper accepts
// secret material; callers log sizes and identifiers only.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Formats accepted by New
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w at the named level and format
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
	return lvl, nil
}

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Op names the pipeline operation
func Op(op string) slog.Attr {
	if op == "" {
		return slog.Attr{}
	}
	return slog.String("op", op)
}

// Scope records the protection scope name
func Scope(scope fmt.Stringer) slog.Attr {
	if scope == nil {
		return slog.Attr{}
	}
	return slog.String("scope", scope.String())
}

// Kind records an error kind
func Kind(kind fmt.Stringer) slog.Attr {
	if kind == nil {
		return slog.Attr{}
	}
	return slog.String("kind", kind.String())
}

// Size records a byte count under key
func Size(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// KeyID records a key identifier
func KeyID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("key_id", id)
}

// Elapsed records the time since start
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
