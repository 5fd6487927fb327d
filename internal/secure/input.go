package secure

import (
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

const readChunk = 512

// ReadFrom reads r to EOF into a new buffer.
// A single trailing line ending is dropped, since piped input usually ends with one.
func ReadFrom(r io.Reader) (*Buffer, error) {
	buf := New()
	chunk := make([]byte, readChunk)
	defer memguard.WipeBytes(chunk)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if aerr := buf.Append(chunk[:n]); aerr != nil {
				buf.Destroy()
				return nil, aerr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			buf.Destroy()
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
	}

	buf.trimNewline()
	return buf, nil
}

// ReadTerminal prompts on w and reads a line from the terminal fd without echo
func ReadTerminal(fd int, prompt string, w io.Writer) (*Buffer, error) {
	fmt.Fprint(w, prompt)

	line, err := term.ReadPassword(fd)
	fmt.Fprintln(w) // New line after input
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	return FromBytes(line), nil
}

// IsTerminal reports whether fd refers to an interactive terminal
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// trimNewline drops one trailing "\n" or "\r\n". Only used before sealing.
func (b *Buffer) trimNewline() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lb == nil || b.n == 0 {
		return
	}
	p := b.lb.Bytes()
	if p[b.n-1] == '\n' {
		b.n--
		p[b.n] = 0
		if b.n > 0 && p[b.n-1] == '\r' {
			b.n--
			p[b.n] = 0
		}
	}
}
