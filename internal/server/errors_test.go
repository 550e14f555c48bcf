package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"classified", newError(KindIO, "read", errors.New("reset")), KindIO},
		{"wrapped classified", fmt.Errorf("serve: %w", newError(KindQuery, "query", errors.New("x"))), KindQuery},
		{"wire decode", fmt.Errorf("%w: bad json", wire.ErrDecode), KindDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_BindConflictMatching(t *testing.T) {
	conflict := newError(KindBindConflict, "listen", errors.New("address in use"))
	assert.ErrorIs(t, conflict, ErrBindConflict)
	assert.ErrorIs(t, fmt.Errorf("run: %w", conflict), ErrBindConflict)

	other := newError(KindIO, "read", errors.New("reset"))
	assert.NotErrorIs(t, other, ErrBindConflict)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "read: reset", newError(KindIO, "read", errors.New("reset")).Error())
	assert.Equal(t, "accept: accept", newError(KindAccept, "accept", nil).Error())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "bind_conflict", KindBindConflict.String())
	assert.Equal(t, "decode", KindDecode.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
