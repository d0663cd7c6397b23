package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("load session: %w", ErrNotFound.WithMessage("session not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))

	ae, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "session not found", ae.Message)
}

func TestAppError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrCacheUnavailable.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrCacheUnavailable)
	assert.Contains(t, err.Error(), "refused")
	// sentinel untouched
	assert.Nil(t, ErrCacheUnavailable.Cause)
}

func TestNewULID(t *testing.T) {
	a, err := NewULID()
	assert.NoError(t, err)
	b, err := NewULID()
	assert.NoError(t, err)
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
