package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelSurvivesWrapping(t *testing.T) {
	sentinel := New(NotFound, "widget not found")
	wrapped := fmt.Errorf("loading widget: %w", sentinel)

	require.ErrorIs(t, wrapped, sentinel)
	require.True(t, IsKind(wrapped, NotFound))
}

func TestHTTPStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(New(Validation, "bad")))
	require.Equal(t, http.StatusForbidden, HTTPStatus(New(Forbidden, "no")))
	require.Equal(t, http.StatusNotFound, HTTPStatus(New(NotFound, "gone")))
	require.Equal(t, http.StatusConflict, HTTPStatus(New(Conflict, "dup")))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("driver broke")))
}

func TestMessageHidesInternalDetail(t *testing.T) {
	require.Equal(t, "bad input", Message(New(Validation, "bad input")))
	require.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
	require.Equal(t, "internal error", Message(Wrap(Internal, "query failed", errors.New("pq: timeout"))))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, Internal, KindOf(errors.New("anything")))
	require.Equal(t, Conflict, KindOf(New(Conflict, "dup")))
}
