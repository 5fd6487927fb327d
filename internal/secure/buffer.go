package secure

import (
	"errors"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/awnumar/memguard"
)

const minCapacity = 64

var (
	ErrReadOnly  = errors.New("buffer is read-only")
	ErrDestroyed = errors.New("buffer has been destroyed")
)

// Buffer holds secret bytes in locked memory
type Buffer struct {
	mu        sync.Mutex
	lb        *memguard.LockedBuffer
	n         int
	sealed    bool
	destroyed bool
}

// New returns an empty, mutable buffer
func New() *Buffer {
	return &Buffer{}
}

// FromBytes moves b into a new buffer. b is wiped.
func FromBytes(b []byte) *Buffer {
	buf := New()
	// A fresh buffer is neither sealed nor destroyed, so Append cannot fail.
	_ = buf.Append(b)
	memguard.WipeBytes(b)
	return buf
}

// FromString copies s into a new buffer.
// The Go string itself cannot be wiped; prefer FromBytes for real input.
func FromString(s string) *Buffer {
	buf := New()
	_ = buf.Append([]byte(s))
	return buf
}

// Append copies p to the end of the buffer
func (b *Buffer) Append(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}

	b.grow(len(p))
	b.lb.CopyAt(b.n, p)
	b.n += len(p)
	return nil
}

// AppendRune appends the UTF-8 encoding of r
func (b *Buffer) AppendRune(r rune) error {
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	err := b.Append(tmp[:n])
	memguard.WipeBytes(tmp[:])
	return err
}

// grow makes room for extra more bytes. Caller holds mu.
func (b *Buffer) grow(extra int) {
	need := b.n + extra
	if b.lb != nil && need <= b.lb.Size() {
		return
	}

	capacity := minCapacity
	if b.lb != nil {
		capacity = b.lb.Size() * 2
	}
	for capacity < need {
		capacity *= 2
	}

	next := memguard.NewBuffer(capacity)
	if b.lb != nil {
		next.Copy(b.lb.Bytes()[:b.n])
		b.lb.Destroy()
	}
	b.lb = next
}

func (b *Buffer) writable() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.sealed {
		return ErrReadOnly
	}
	return nil
}

// Seal makes the buffer immutable. Sealing twice is a no-op.
func (b *Buffer) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed || b.sealed {
		return
	}
	b.sealed = true
	if b.lb != nil {
		b.lb.Freeze()
	}
}

// ReadOnly reports whether Seal has been called
func (b *Buffer) ReadOnly() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Alive reports whether the buffer can still be read
func (b *Buffer) Alive() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.destroyed
}

// Len returns the number of bytes held
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Reveal calls fn with the buffer content.
// The slice is only valid during fn and must not be retained.
func (b *Buffer) Reveal(fn func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if b.lb == nil {
		return fn(nil)
	}
	return fn(b.lb.Bytes()[:b.n])
}

// WriteTo writes the content straight from locked memory to w
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var written int
	err := b.Reveal(func(p []byte) error {
		var err error
		written, err = w.Write(p)
		return err
	})
	return int64(written), err
}

// String never returns the content
func (b *Buffer) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v from printing the content
func (b *Buffer) GoString() string {
	return "secure.Buffer{[REDACTED]}"
}

// Destroy wipes and releases the buffer. Safe to call on nil and repeatedly.
func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.lb != nil {
		b.lb.Destroy()
		b.lb = nil
	}
	b.n = 0
}
