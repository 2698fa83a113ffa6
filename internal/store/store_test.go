package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.False(t, IsNoRows(errors.New("boom")))
	assert.False(t, IsNoRows(nil))
}

func TestWrap_SatisfiesErrorsIsStoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := wrap(cause, "ListStops")

	assert.True(t, errors.Is(wrapped, ErrStoreUnavailable))
	assert.Contains(t, wrapped.Error(), "ListStops")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, wrap(nil, "op"))
}

func TestWrap_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("timeout")
	wrapped := wrap(cause, "AllLines")

	assert.ErrorIs(t, wrapped, cause)
}
