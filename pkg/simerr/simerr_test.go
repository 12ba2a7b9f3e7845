package simerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with detail",
			err:  New(UnknownEntity, "pool.Get", errors.New("row 4 not mapped")),
			want: "pool.Get: unknown_entity: row 4 not mapped",
		},
		{
			name: "without detail",
			err:  New(Timeout, "snapshot.Full", nil),
			want: "snapshot.Full: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := errors.New("wrapping test")
	base := New(PermissionDenied, "store.Set", wrapped)

	assert.Equal(t, PermissionDenied, KindOf(base))
	assert.True(t, Is(base, PermissionDenied))
	assert.False(t, Is(base, Timeout))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
}

func TestUnwrap(t *testing.T) {
	wrapped := errors.New("underlying")
	err := New(InvalidValue, "pool.Set", wrapped)

	assert.ErrorIs(t, err, wrapped)
}

func TestErrorsIsByKind(t *testing.T) {
	a := New(UnknownComponent, "pool.Set", errors.New("detail a"))
	b := New(UnknownComponent, "store.Get", errors.New("detail b"))
	c := New(Timeout, "store.Get", nil)

	assert.True(t, errors.Is(a, &Error{Kind: UnknownComponent}))
	assert.True(t, errors.Is(b, &Error{Kind: UnknownComponent}))
	assert.False(t, errors.Is(c, &Error{Kind: UnknownComponent}))
}

func TestNewInvalidState(t *testing.T) {
	err := NewInvalidState("container.Pause", "STOPPED", "PAUSED")

	assert.Equal(t, InvalidState, err.Kind)
	assert.Contains(t, err.Error(), "STOPPED -> PAUSED")
}

func TestNewBadCommand(t *testing.T) {
	err := NewBadCommand("command.Enqueue", "missing required param: vx")

	assert.Equal(t, BadCommand, err.Kind)
	assert.Contains(t, err.Error(), "missing required param: vx")
}
