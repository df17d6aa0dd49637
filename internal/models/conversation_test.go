package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalPairOrders(t *testing.T) {
	a, b := CanonicalPair("zoe", "adam")
	require.Equal(t, "adam", a)
	require.Equal(t, "zoe", b)

	a, b = CanonicalPair("adam", "zoe")
	require.Equal(t, "adam", a)
	require.Equal(t, "zoe", b)
}

func TestPeerOf(t *testing.T) {
	conv := Conversation{UserA: "adam", UserB: "zoe"}
	require.Equal(t, "zoe", conv.PeerOf("adam"))
	require.Equal(t, "adam", conv.PeerOf("zoe"))
}

func TestMessageViewMasksDeleted(t *testing.T) {
	msg := Message{ID: 1, Content: "secret", Deleted: true}
	view := msg.View()
	require.Empty(t, view.Content)
	require.True(t, view.Deleted)
	require.Equal(t, int64(1), view.ID)

	live := Message{ID: 2, Content: "hello"}
	require.Equal(t, "hello", live.View().Content)
}
