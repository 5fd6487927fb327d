package protection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"CurrentUser", CurrentUser, false},
		{"currentuser", CurrentUser, false},
		{" LOCALMACHINE ", LocalMachine, false},
		{"0", CurrentUser, false},
		{"1", LocalMachine, false},
		{"", 0, true},
		{"2", 0, true},
		{"Everyone", 0, true},
		{"3b241101-e2bb-4255-8caf-4136c566a962", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScopeText(t *testing.T) {
	for _, s := range Scopes {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Scope
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	_, err := Scope(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidScope)
	assert.False(t, Scope(9).Valid())
	assert.Equal(t, "Scope(9)", Scope(9).String())
}

func TestNewProviderSelection(t *testing.T) {
	dir := t.TempDir()
	svc, err := New(Options{
		Provider:        ProviderLocal,
		UserKeyBackend:  BackendFile,
		UserKeyStore:    dir + "/user.db",
		MachineKeyStore: dir + "/machine.db",
	})
	require.NoError(t, err)
	_, ok := svc.(*Local)
	assert.True(t, ok)

	_, err = New(Options{Provider: "hsm"})
	assert.Error(t, err)
}

func TestCallContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := callContext(ctx, nil, func([]byte) ([]byte, error) {
		<-release
		return []byte("late"), nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallContextOwnsInputCopy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	in := []byte("hello-world")
	seen := make(chan []byte, 1)
	release := make(chan struct{})

	_, err := callContext(ctx, in, func(data []byte) ([]byte, error) {
		<-release
		seen <- append([]byte(nil), data...)
		return nil, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The caller wipes its slice while the call is still running
	for i := range in {
		in[i] = 0
	}
	close(release)

	assert.Equal(t, "hello-world", string(<-seen))
}

func TestCallContextWipesInputCopy(t *testing.T) {
	var own []byte
	_, err := callContext(context.Background(), []byte("hello-world"), func(data []byte) ([]byte, error) {
		own = data
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len("hello-world")), own)
}

func TestCallContextPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	_, err := callContext(context.Background(), nil, func([]byte) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	data, err := callContext(context.Background(), nil, func([]byte) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}
