package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedChain(t *testing.T) {
	base := Wrap(NotFound, "session not found", sql.ErrNoRows)
	err := fmt.Errorf("load session: %w", base)

	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, Is(err, NotFound))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, "session not found", Message(err))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	err := fmt.Errorf("boom")

	assert.Equal(t, Internal, KindOf(err))
	assert.Equal(t, "internal server error", Message(err))
	assert.False(t, Is(nil, Internal))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthorized:        http.StatusUnauthorized,
		NotFound:            http.StatusNotFound,
		InvalidInput:        http.StatusBadRequest,
		InvalidState:        http.StatusBadRequest,
		UnintelligibleAudio: http.StatusBadRequest,
		AdapterUnavailable:  http.StatusServiceUnavailable,
		Conflict:            http.StatusConflict,
		AdapterFailure:      http.StatusInternalServerError,
		StorageError:        http.StatusInternalServerError,
		Internal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), "kind %s", kind)
	}
}

func TestWithDetail(t *testing.T) {
	err := New(InvalidState, "conversation not completed").WithDetail("current_step", "materials")

	details := Details(fmt.Errorf("generate: %w", err))
	require.NotNil(t, details)
	assert.Equal(t, "materials", details["current_step"])
}
